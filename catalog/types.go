package catalog

import "slices"

// ParamKind is the value kind a node parameter accepts.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindObject  ParamKind = "object"
	KindEnum    ParamKind = "enum"
)

// Valid reports whether k is one of the known parameter kinds.
func (k ParamKind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindObject, KindEnum:
		return true
	}
	return false
}

// ParameterSpec describes one parameter accepted by a node type.
type ParameterSpec struct {
	Name          string    `json:"name" yaml:"name"`
	Kind          ParamKind `json:"kind" yaml:"kind"`
	Default       any       `json:"default,omitempty" yaml:"default,omitempty"`
	AllowedValues []any     `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
	Required      bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// NodeDefinition is one entry of the node catalog. Definitions are shared
// read-only values; callers must copy ExampleParameters before mutating it.
type NodeDefinition struct {
	TypeID                  string          `json:"typeId" yaml:"typeId"`
	DisplayName             string          `json:"displayName" yaml:"displayName"`
	Description             string          `json:"description" yaml:"description"`
	TypeVersion             float64         `json:"typeVersion" yaml:"typeVersion"`
	Category                []string        `json:"category" yaml:"category"`
	ParameterSchema         []ParameterSpec `json:"parameterSchema,omitempty" yaml:"parameters,omitempty"`
	RequiredCredentialKinds []string        `json:"requiredCredentialKinds,omitempty" yaml:"credentials,omitempty"`
	UsageHints              []string        `json:"usageHints,omitempty" yaml:"usageHints,omitempty"`
	ExampleParameters       map[string]any  `json:"exampleParameters,omitempty" yaml:"example,omitempty"`
}

// HasCategory reports whether the definition is a member of category.
func (d NodeDefinition) HasCategory(category string) bool {
	return slices.Contains(d.Category, category)
}

// Param returns the parameter spec with the given name.
func (d NodeDefinition) Param(name string) (ParameterSpec, bool) {
	for _, p := range d.ParameterSchema {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Well-known categories used by the pipeline.
const (
	CategoryTrigger = "trigger"
	CategoryError   = "error"
	CategoryLogic   = "logic"
	CategoryAI      = "ai"
	CategoryEmail   = "email"
)
