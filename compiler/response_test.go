package compiler

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseResponseExtracts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced with prose", "Sure! Here is the plan: ```json {\"trigger\":{\"type\":\"schedule\"}}``` Let me know.", `{"trigger":{"type":"schedule"}}`},
		{"fenced untagged", "```\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`},
		{"fenced array", "```json\n[{\"index\":1}]\n```", `[{"index":1}]`},
		{"object in prose", `The answer is {"a":"}"} as requested.`, `{"a":"}"}`},
		{"escaped quote in string", `x {"a":"say \"{hi\""} y`, `{"a":"say \"{hi\""}`},
		{"skips invalid span", `first {not json} then {"ok":true}`, `{"ok":true}`},
		{"invalid fence falls through to span", "```json\n{oops}\n``` but really {\"b\":2}", `{"b":2}`},
		{"scalar fence falls through to span", "```json\n42\n``` so {\"c\":3}", `{"c":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseResponse(tt.text)
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			var got, want any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatal(err)
			}
			_ = json.Unmarshal([]byte(tt.want), &want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestParseResponseFailures(t *testing.T) {
	tests := []struct {
		text   string
		reason string
	}{
		{"", ReasonEmpty},
		{"   \n\t", ReasonEmpty},
		{"I could not build a plan for that.", ReasonNoJSON},
		{"unterminated {\"a\":1", ReasonNoJSON},
		{"broken {\"a\":} here", ReasonInvalidJSON},
		{"```json\n42\n```", ReasonNoJSON},
		{"```\n\"just a sentence\"\n```", ReasonNoJSON},
		{"```json\nnull\n```", ReasonNoJSON},
		{"```\ntrue\n```", ReasonNoJSON},
	}
	for _, tt := range tests {
		_, err := ParseResponse(tt.text)
		var pf *ParseFailure
		if !errors.As(err, &pf) {
			t.Fatalf("ParseResponse(%q) err = %v, want *ParseFailure", tt.text, err)
		}
		if pf.Reason != tt.reason {
			t.Errorf("ParseResponse(%q).Reason = %q, want %q", tt.text, pf.Reason, tt.reason)
		}
	}
}

func TestParseResponseFailureDeterministic(t *testing.T) {
	text := "Sorry, " + strings.Repeat("no json here ", 40)
	_, first := ParseResponse(text)
	for i := 0; i < 5; i++ {
		_, again := ParseResponse(text)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("failure differs between runs: %v vs %v", first, again)
		}
	}
	pf := first.(*ParseFailure)
	if n := len([]rune(pf.Excerpt)); n > excerptRunes+3 {
		t.Errorf("excerpt has %d runes", n)
	}
}
