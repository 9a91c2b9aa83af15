package compiler

import (
	"encoding/json"

	"github.com/GoCodeAlone/wfgen/graph"
)

// Stage names, in pipeline order, as reported in progress events,
// fallbacks, metrics and spans.
const (
	StageDecompose = "decompose"
	StageMap       = "map"
	StageArchitect = "architect"
	StageOptimize  = "optimize"
	StageAssemble  = "assemble"
	StageComplete  = "complete"
)

// TriggerManual is the trigger type used when none can be determined.
const TriggerManual = "manual"

// Trigger describes what starts the automation.
type Trigger struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Activity is one data source, processing step or output of a Decomposition.
type Activity struct {
	Service     string `json:"service,omitempty"`
	Description string `json:"description"`
	Operation   string `json:"operation,omitempty"`
}

// UnmarshalJSON also accepts a bare string, taken as the description.
func (a *Activity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Activity{Description: s}
		return nil
	}
	type plain Activity
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Activity(p)
	return nil
}

// Label returns the service name, or the description when there is none.
func (a Activity) Label() string {
	if a.Service != "" {
		return a.Service
	}
	return a.Description
}

// Decomposition is the Decomposer's structured reading of a task.
type Decomposition struct {
	Trigger         Trigger        `json:"trigger"`
	DataSources     []Activity     `json:"dataSources"`
	ProcessingSteps []Activity     `json:"processingSteps"`
	Outputs         []Activity     `json:"outputs"`
	SpecialLogic    map[string]any `json:"specialLogic"`
}

// Roles of a mapped step, i.e. which Decomposition section it came from.
const (
	RoleTrigger = "trigger"
	RoleSource  = "dataSource"
	RoleProcess = "processingStep"
	RoleOutput  = "output"
)

// MappedStep binds one Decomposition entry to a catalog node type.
type MappedStep struct {
	Role         string     `json:"role"`
	Description  string     `json:"description"`
	ServiceLabel string     `json:"serviceLabel,omitempty"`
	NodeTypeID   string     `json:"nodeTypeId"`
	Kind         graph.Kind `json:"kind,omitempty"`
	Rationale    string     `json:"rationale,omitempty"`
}

// AdditionalNode is a supporting node the mapper wants that no
// Decomposition entry asked for (e.g. a Merge or an If).
type AdditionalNode struct {
	Description  string     `json:"description"`
	ServiceLabel string     `json:"serviceLabel,omitempty"`
	NodeTypeID   string     `json:"nodeTypeId"`
	Kind         graph.Kind `json:"kind,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Mapping is the NodeMapper's output.
type Mapping struct {
	MappedSteps     []MappedStep     `json:"mappedSteps"`
	AdditionalNodes []AdditionalNode `json:"additionalNodes"`
}

// Fallback records a stage that replaced the completion output with its
// deterministic default.
type Fallback struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Result is the outcome of one generation.
type Result struct {
	RequestID     string             `json:"requestId"`
	Steps         []graph.Step       `json:"steps"`
	Workflow      *graph.Workflow    `json:"workflow"`
	Decomposition Decomposition      `json:"decomposition"`
	Mapping       Mapping            `json:"mapping"`
	Fallbacks     []Fallback         `json:"fallbacks,omitempty"`
	Diagnostics   []graph.Diagnostic `json:"diagnostics,omitempty"`
}

// UsedFallback reports whether any stage fell back.
func (r *Result) UsedFallback() bool { return len(r.Fallbacks) > 0 }
