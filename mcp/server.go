// Package mcp provides a Model Context Protocol (MCP) server that exposes
// workflow generation and the node catalog to AI assistants, so a tool-using
// model can draft a workflow from a task description or look up the node
// types it may use.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/compiler"
	"github.com/GoCodeAlone/wfgen/graph"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Version is the MCP server version, set at build time.
var Version = "dev"

// Resource URIs.
const (
	uriOverview = "wfgen://docs/overview"
	uriCatalog  = "wfgen://docs/catalog"
)

// Server wraps an MCP server instance and registers the generation and
// catalog tools.
type Server struct {
	mcpServer *server.MCPServer
	generator *compiler.Generator
}

// NewServer creates a new MCP server backed by generator.
func NewServer(generator *compiler.Generator) *Server {
	s := &Server{generator: generator}

	s.mcpServer = server.NewMCPServer(
		"wfgen-mcp-server",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("This MCP server turns plain-language automation requests into "+
			"importable n8n workflow JSON. Use generate_workflow for a complete workflow, or the "+
			"node tools to browse the catalog of node types a workflow may use."),
	)

	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server instance (useful for testing).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server over standard input/output.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registry() *catalog.Registry { return s.generator.Registry() }

// registerTools registers every tool with the MCP server.
func (s *Server) registerTools() {
	// generate_workflow
	s.mcpServer.AddTool(
		mcp.NewTool("generate_workflow",
			mcp.WithDescription("Generate an importable n8n workflow from a plain-language task description. "+
				"Returns the step plan, the workflow JSON and any stages that fell back to deterministic defaults."),
			mcp.WithString("task",
				mcp.Required(),
				mcp.Description("What the automation should do, e.g. 'Every Friday, summarize Slack messages and email the team'"),
			),
		),
		s.handleGenerateWorkflow,
	)

	// assemble_workflow
	s.mcpServer.AddTool(
		mcp.NewTool("assemble_workflow",
			mcp.WithDescription("Lay out and wire a step plan into workflow JSON without calling a model. "+
				"Steps use the fields index, kind, description, serviceLabel, nodeTypeId, parallelizable."),
			mcp.WithString("steps",
				mcp.Required(),
				mcp.Description("JSON array of steps, or an object with a steps array"),
			),
			mcp.WithString("name",
				mcp.Description("Workflow name. Default: "+graph.DefaultWorkflowName),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleAssembleWorkflow,
	)

	// lookup_node
	s.mcpServer.AddTool(
		mcp.NewTool("lookup_node",
			mcp.WithDescription("Return the catalog definition of a node type: parameters, credentials, categories and usage hints."),
			mcp.WithString("type_id",
				mcp.Required(),
				mcp.Description("The node type identifier, e.g. 'n8n-nodes-base.slack'"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleLookupNode,
	)

	// search_nodes
	s.mcpServer.AddTool(
		mcp.NewTool("search_nodes",
			mcp.WithDescription("Find node types whose description or usage hints mention a keyword."),
			mcp.WithString("keyword",
				mcp.Required(),
				mcp.Description("Keyword to search for, e.g. 'spreadsheet'"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleSearchNodes,
	)

	// list_nodes
	s.mcpServer.AddTool(
		mcp.NewTool("list_nodes",
			mcp.WithDescription("List catalog node types, optionally restricted to one category."),
			mcp.WithString("category",
				mcp.Description("Category to filter by, e.g. 'trigger', 'communication', 'ai'"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListNodes,
	)
}

// registerResources registers documentation resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			uriOverview,
			"wfgen Overview",
			mcp.WithResourceDescription("How wfgen turns a task description into a workflow: stages, fallbacks and the output format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.handleDocsOverview,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(
			uriCatalog,
			"Node Catalog Reference",
			mcp.WithResourceDescription("Every node type in the catalog grouped by category."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.handleDocsCatalog,
	)
}

// --- Tool Handlers ---

// nodeSummary is the short form of a node definition used in listings.
type nodeSummary struct {
	TypeID      string   `json:"type_id"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
}

func summarize(defs []catalog.NodeDefinition) []nodeSummary {
	out := make([]nodeSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, nodeSummary{
			TypeID:      d.TypeID,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Categories:  d.Category,
		})
	}
	return out
}

func (s *Server) handleGenerateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task := mcp.ParseString(req, "task", "")
	if strings.TrimSpace(task) == "" {
		return mcp.NewToolResultError("task is required"), nil
	}
	res, err := s.generator.Generate(ctx, task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}
	return marshalToolResult(resultPayload(res))
}

func resultPayload(res *compiler.Result) map[string]any {
	fbs := res.Fallbacks
	if fbs == nil {
		fbs = []compiler.Fallback{}
	}
	return map[string]any{
		"request_id":  res.RequestID,
		"steps":       res.Steps,
		"workflow":    res.Workflow,
		"fallbacks":   fbs,
		"diagnostics": res.Diagnostics,
	}
}

func (s *Server) handleAssembleWorkflow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := strings.TrimSpace(mcp.ParseString(req, "steps", ""))
	if raw == "" {
		return mcp.NewToolResultError("steps is required"), nil
	}
	steps, err := parseSteps(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid steps: %v", err)), nil
	}
	name := strings.TrimSpace(mcp.ParseString(req, "name", ""))
	if name == "" {
		name = graph.DefaultWorkflowName
	}
	return marshalToolResult(resultPayload(s.generator.AssembleSteps(name, steps)))
}

func parseSteps(raw string) ([]graph.Step, error) {
	var steps []graph.Step
	if strings.HasPrefix(raw, "{") {
		var wrapped struct {
			Steps []graph.Step `json:"steps"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, err
		}
		steps = wrapped.Steps
	} else if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.New("no steps")
	}
	return steps, nil
}

func (s *Server) handleLookupNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeID := strings.TrimSpace(mcp.ParseString(req, "type_id", ""))
	if typeID == "" {
		return mcp.NewToolResultError("type_id is required"), nil
	}
	def, ok := s.registry().Lookup(typeID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", catalog.ErrNotFound, typeID)), nil
	}
	return marshalToolResult(def)
}

func (s *Server) handleSearchNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := strings.TrimSpace(mcp.ParseString(req, "keyword", ""))
	if keyword == "" {
		return mcp.NewToolResultError("keyword is required"), nil
	}
	nodes := summarize(s.registry().SearchByUseCase(keyword))
	return marshalToolResult(map[string]any{
		"keyword": keyword,
		"nodes":   nodes,
		"count":   len(nodes),
	})
}

func (s *Server) handleListNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := strings.TrimSpace(mcp.ParseString(req, "category", ""))
	defs := s.registry().All()
	if category != "" {
		defs = s.registry().ByCategory(category)
	}
	nodes := summarize(defs)
	result := map[string]any{
		"nodes":      nodes,
		"count":      len(nodes),
		"categories": s.registry().Categories(),
	}
	if category != "" {
		result["category"] = category
	}
	return marshalToolResult(result)
}

// --- Resource Handlers ---

func (s *Server) handleDocsOverview(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uriOverview,
			MIMEType: "text/markdown",
			Text:     docsOverview,
		},
	}, nil
}

func (s *Server) handleDocsCatalog(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uriCatalog,
			MIMEType: "text/markdown",
			Text:     catalogReference(s.registry()),
		},
	}, nil
}

// catalogReference renders the catalog as markdown, one section per category.
// A node appears under every category it belongs to.
func catalogReference(reg *catalog.Registry) string {
	title := cases.Title(language.English)

	var b strings.Builder
	b.WriteString("# Node Catalog Reference\n\n")
	fmt.Fprintf(&b, "%d node types grouped by category.\n\n", reg.Len())

	for _, cat := range reg.Categories() {
		fmt.Fprintf(&b, "## %s\n\n", title.String(cat))
		for _, d := range reg.ByCategory(cat) {
			fmt.Fprintf(&b, "- `%s` **%s**: %s\n", d.TypeID, d.DisplayName, d.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// --- Helpers ---

func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
