package graph

import "fmt"

// Diagnostic codes reported by Normalize and the Assembler.
const (
	DiagUnknownType     = "unknown_type"
	DiagParameter       = "parameter"
	DiagRule            = "rule"
	DiagReindexed       = "reindexed"
	DiagTriggerMoved    = "trigger_moved"
	DiagParallelCleared = "parallel_cleared"
	DiagOrphanHandler   = "orphan_error_handler"
	DiagNameTaken       = "name_deduplicated"
	DiagNoTrigger       = "no_trigger"
	DiagTriggerReplaced = "trigger_replaced"
	DiagHandlerRetyped  = "error_handler_retyped"
)

// Diagnostic is a non-fatal finding about one step or node.
type Diagnostic struct {
	Step    int    `json:"step,omitempty"`
	Node    string `json:"node,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Node != "":
		return fmt.Sprintf("%s (node %q): %s", d.Code, d.Node, d.Message)
	case d.Step > 0:
		return fmt.Sprintf("%s (step %d): %s", d.Code, d.Step, d.Message)
	}
	return d.Code + ": " + d.Message
}
