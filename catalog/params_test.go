package catalog

import (
	"reflect"
	"testing"
)

func TestValidateParameters(t *testing.T) {
	def := NodeDefinition{
		TypeID: "test.node",
		ParameterSchema: []ParameterSpec{
			{Name: "url", Kind: KindString, Required: true},
			{Name: "retries", Kind: KindNumber, Default: 3},
			{Name: "enabled", Kind: KindBoolean},
			{Name: "options", Kind: KindObject, Required: true, Default: map[string]any{}},
			{Name: "method", Kind: KindEnum, AllowedValues: []any{"GET", "POST"}, Default: "GET"},
			{Name: "size", Kind: KindEnum, AllowedValues: []any{1, 2}},
		},
	}

	tests := []struct {
		name       string
		in         map[string]any
		want       map[string]any
		wantIssues []string
	}{
		{
			name: "valid passes through",
			in:   map[string]any{"url": "https://x", "retries": 2.0, "enabled": true, "options": map[string]any{"a": 1}, "method": "POST"},
			want: map[string]any{"url": "https://x", "retries": 2.0, "enabled": true, "options": map[string]any{"a": 1}, "method": "POST"},
		},
		{
			name:       "unknown key removed",
			in:         map[string]any{"url": "u", "options": map[string]any{}, "colour": "red"},
			want:       map[string]any{"url": "u", "options": map[string]any{}},
			wantIssues: []string{"colour"},
		},
		{
			name:       "kind mismatch uses default",
			in:         map[string]any{"url": "u", "options": map[string]any{}, "retries": "many"},
			want:       map[string]any{"url": "u", "options": map[string]any{}, "retries": 3},
			wantIssues: []string{"retries"},
		},
		{
			name:       "kind mismatch without default is removed",
			in:         map[string]any{"url": "u", "options": map[string]any{}, "enabled": "yes"},
			want:       map[string]any{"url": "u", "options": map[string]any{}},
			wantIssues: []string{"enabled"},
		},
		{
			name:       "enum outside allowed values",
			in:         map[string]any{"url": "u", "options": map[string]any{}, "method": "TRACE"},
			want:       map[string]any{"url": "u", "options": map[string]any{}, "method": "GET"},
			wantIssues: []string{"method"},
		},
		{
			name: "numeric enum matches across int and float",
			in:   map[string]any{"url": "u", "options": map[string]any{}, "size": 2.0},
			want: map[string]any{"url": "u", "options": map[string]any{}, "size": 2.0},
		},
		{
			name:       "required filled from default or reported",
			in:         map[string]any{},
			want:       map[string]any{"options": map[string]any{}},
			wantIssues: []string{"url"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, issues := ValidateParameters(def, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("params = %v, want %v", got, tt.want)
			}
			var names []string
			for _, is := range issues {
				names = append(names, is.Param)
			}
			if !reflect.DeepEqual(names, tt.wantIssues) {
				t.Errorf("issues = %v, want params %v", issues, tt.wantIssues)
			}
		})
	}
}

func TestValidateParametersDoesNotMutateInput(t *testing.T) {
	def := NodeDefinition{TypeID: "t", ParameterSchema: []ParameterSpec{{Name: "a", Kind: KindString}}}
	in := map[string]any{"a": "x", "b": 1}
	_, _ = ValidateParameters(def, in)
	if len(in) != 2 {
		t.Errorf("input was modified: %v", in)
	}
}

func TestCloneParametersIsDeep(t *testing.T) {
	src := map[string]any{
		"nested": map[string]any{"list": []any{map[string]any{"k": "v"}}},
	}
	dst := CloneParameters(src)
	dst["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"] = "changed"
	if src["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"] != "v" {
		t.Error("CloneParameters shared nested state with the source")
	}
	if got := CloneParameters(nil); got == nil || len(got) != 0 {
		t.Errorf("CloneParameters(nil) = %v, want empty map", got)
	}
}
