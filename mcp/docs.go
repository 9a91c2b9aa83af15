package mcp

// docsOverview describes the generation pipeline for MCP clients.
const docsOverview = `# wfgen Overview

## What does wfgen do?

wfgen turns a plain-language automation request, such as "Every Friday, summarize
Slack messages and email the team", into an n8n workflow that can be imported as is.

## Stages

A generation makes one model call per stage:

1. **decompose** splits the task into a trigger, data sources, processing steps and outputs.
2. **map** binds each part to a node type from the catalog.
3. **architect** orders the nodes into a step plan and adds error handlers.
4. **optimize** merges or reorders steps where that is safe.

The step plan is then **assembled** into workflow JSON: nodes are laid out left to right,
wired in order, and parameters are filled from catalog examples and parameter rules.

## Fallbacks

A stage whose answer cannot be parsed never fails the request. It falls back to a
deterministic default built from the catalog, and the result lists every stage that did so
under ` + "`fallbacks`" + `. Only provider failures (network errors, an open circuit breaker)
fail a generation.

## Output

` + "```json" + `
{
  "name": "Every Friday Summarize Slack Messages And",
  "nodes": [{"id": "...", "name": "Weekly Schedule", "type": "n8n-nodes-base.scheduleTrigger", ...}],
  "connections": {"Weekly Schedule": {"main": [[{"node": "Slack", "type": "main", "index": 0}]]}},
  "active": false,
  "settings": {"executionOrder": "v1"},
  "tags": ["ai-generated", "wfgen"]
}
` + "```" + `

## Tools

- ` + "`generate_workflow`" + ` runs every stage for a task.
- ` + "`assemble_workflow`" + ` assembles a step plan you wrote yourself.
- ` + "`lookup_node`" + `, ` + "`search_nodes`" + ` and ` + "`list_nodes`" + ` browse the catalog.
`
