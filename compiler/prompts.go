package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/graph"
)

// DecomposeSystemPrompt returns the system prompt for the decomposition stage.
func DecomposeSystemPrompt() string {
	return `You are an automation analyst. You read a plain-language description of a
task and break it into the parts an automation platform needs.

Respond with a single JSON object and nothing else:

{
  "trigger": {"type": "schedule|webhook|manual|email|form|rss", "description": "...", "details": {}},
  "dataSources": [{"service": "...", "description": "...", "operation": "..."}],
  "processingSteps": [{"service": "...", "description": "...", "operation": "..."}],
  "outputs": [{"service": "...", "description": "...", "operation": "..."}],
  "specialLogic": {}
}

Rules:
- "service" names the product involved (Slack, Gmail, Google Sheets, OpenAI, HTTP ...).
- Put schedule details such as weekday and time in trigger.details.
- Use an empty array when a section has no entries.
- Put conditions, loops and deduplication requirements in specialLogic.`
}

// DecomposeUserPrompt returns the user message for the decomposition stage.
func DecomposeUserPrompt(task string) string {
	return "Task:\n" + task
}

// MapSystemPrompt returns the system prompt for the node mapping stage.
func MapSystemPrompt() string {
	return `You are an automation architect. You choose the node type from a catalog
for every part of an analysed task.

Respond with a single JSON object and nothing else:

{
  "mappedSteps": [
    {"role": "trigger|dataSource|processingStep|output", "description": "...",
     "serviceLabel": "...", "nodeTypeId": "...", "kind": "Trigger|Process|Action|Logic|Transform",
     "rationale": "..."}
  ],
  "additionalNodes": [
    {"description": "...", "serviceLabel": "...", "nodeTypeId": "...", "kind": "Logic|Transform", "reason": "..."}
  ]
}

Rules:
- Only use nodeTypeId values that appear in the catalog.
- Map the trigger first, then data sources, processing steps and outputs in order.
- Use additionalNodes for supporting nodes (merge, if, set) the task needs but did not name.`
}

// MapUserPrompt returns the user message for the node mapping stage.
func MapUserPrompt(task string, d Decomposition, excerpt []catalog.ExcerptEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task:\n%s\n\nAnalysis:\n%s\n\nCatalog:\n%s\n", task, mustJSON(d), mustJSON(excerpt))
	return b.String()
}

// ArchitectSystemPrompt returns the system prompt for the architecture stage.
func ArchitectSystemPrompt() string {
	return `You are an automation architect. You turn mapped nodes into an ordered plan
of workflow steps.

Respond with a single JSON object and nothing else:

{
  "steps": [
    {"index": 1, "kind": "Trigger|Process|Action|Logic|Transform|ErrorHandler",
     "description": "...", "serviceLabel": "...", "nodeTypeId": "...",
     "rationale": "...", "parallelizable": false, "errorHandlingNote": "..."}
  ]
}

Rules:
- The first step is the trigger.
- Number steps from 1 without gaps.
- After every step that calls an external service, add an ErrorHandler step
  (nodeTypeId n8n-nodes-base.stopAndError) that handles its failure.
- Mark consecutive independent steps (e.g. reading several sources) parallelizable.
- Triggers and ErrorHandler steps are never parallelizable.`
}

// ArchitectUserPrompt returns the user message for the architecture stage.
func ArchitectUserPrompt(task string, m Mapping) string {
	return fmt.Sprintf("Task:\n%s\n\nMapped nodes:\n%s\n", task, mustJSON(m))
}

// OptimizeSystemPrompt returns the system prompt for the optimization stage.
func OptimizeSystemPrompt() string {
	return `You are an automation reviewer. You simplify a workflow plan without changing
what it does.

You may reorder independent steps, remove redundant steps and merge steps that
call the same node type in parallel. Keep the trigger as the first step and keep
every ErrorHandler directly after the step it guards.

Respond with a single JSON object and nothing else:

{"steps": [ ...same shape as the input steps, renumbered from 1... ]}`
}

// OptimizeUserPrompt returns the user message for the optimization stage.
func OptimizeUserPrompt(steps []graph.Step) string {
	return "Plan:\n" + mustJSON(map[string]any{"steps": steps}) + "\n"
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
