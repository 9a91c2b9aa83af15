package graph

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
)

// MaxNameLength bounds node names, counted in runes.
const MaxNameLength = 30

// DefaultWorkflowName is used when Assemble is called without a name.
const DefaultWorkflowName = "Generated Workflow"

// AssemblerOption configures optional Assembler behaviour.
type AssemblerOption func(*Assembler)

// WithRules sets the parameter rule table. A nil table disables rules.
func WithRules(t *RuleTable) AssemblerOption {
	return func(a *Assembler) { a.rules = t }
}

// WithLayout overrides the canvas layout.
func WithLayout(l Layout) AssemblerOption {
	return func(a *Assembler) { a.layout = l }
}

// WithLogger sets the logger used for rule and validation findings.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// Assembler lowers an ordered step list into a positioned node graph. It
// holds only immutable collaborators and can be shared between goroutines.
type Assembler struct {
	registry *catalog.Registry
	rules    *RuleTable
	layout   Layout
	logger   *slog.Logger
}

// NewAssembler creates an Assembler over reg. Without WithRules no parameter
// customization is applied.
func NewAssembler(reg *catalog.Registry, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		registry: reg,
		layout:   DefaultLayout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the catalog the assembler resolves node types against.
func (a *Assembler) Registry() *catalog.Registry { return a.registry }

// Assemble builds a workflow with one node per step. It never fails: unknown
// node types become empty-parameter nodes and every problem is reported as a
// Diagnostic.
func (a *Assembler) Assemble(name string, steps []Step) (*Workflow, []Diagnostic) {
	if strings.TrimSpace(name) == "" {
		name = DefaultWorkflowName
	}
	w := &Workflow{
		Name:        name,
		Nodes:       make([]Node, 0, len(steps)),
		Connections: make(map[string]NodeConnections),
		Active:      false,
		Settings:    DefaultSettings(),
		Tags:        append([]string(nil), StaticTags...),
	}
	var diags []Diagnostic

	positions := a.layout.Positions(steps)
	taken := make(map[string]bool, len(steps))
	for i, s := range steps {
		node, nd := a.buildNode(i, s, taken)
		node.Position = positions[i]
		w.Nodes = append(w.Nodes, node)
		diags = append(diags, nd...)
	}

	diags = append(diags, a.wire(w, steps)...)
	return w, diags
}

func (a *Assembler) buildNode(i int, s Step, taken map[string]bool) (Node, []Diagnostic) {
	var diags []Diagnostic
	node := Node{
		ID:          "node-" + strconv.Itoa(i+1),
		Type:        s.NodeTypeID,
		TypeVersion: 1,
		Parameters:  map[string]any{},
	}

	def, ok := a.lookup(s.NodeTypeID)
	base := nodeName(s, def, ok, i)
	node.Name = uniqueName(base, taken)
	if node.Name != base {
		diags = append(diags, Diagnostic{Step: i + 1, Node: node.Name, Code: DiagNameTaken,
			Message: fmt.Sprintf("name %q already used", base)})
	}

	if !ok {
		diags = append(diags, Diagnostic{Step: i + 1, Node: node.Name, Code: DiagUnknownType,
			Message: fmt.Sprintf("node type %q is not in the catalog", s.NodeTypeID)})
		return node, diags
	}
	node.TypeVersion = def.TypeVersion

	params := catalog.CloneParameters(def.ExampleParameters)
	if a.rules != nil {
		in := RuleInput{
			TypeID:      def.TypeID,
			Description: s.Description,
			Service:     s.ServiceLabel,
			Kind:        s.Kind,
			Categories:  def.Category,
		}
		out, rule, err := a.rules.Apply(in, params)
		switch {
		case err != nil:
			a.logger.Warn("parameter rule failed", "node", node.Name, "rule", rule, "error", err)
			diags = append(diags, Diagnostic{Step: i + 1, Node: node.Name, Code: DiagRule, Message: err.Error()})
		case rule != "":
			a.logger.Debug("parameter rule applied", "node", node.Name, "rule", rule)
			params = out
		}
	}

	params, issues := catalog.ValidateParameters(def, params)
	for _, is := range issues {
		diags = append(diags, Diagnostic{Step: i + 1, Node: node.Name, Code: DiagParameter, Message: is.String()})
	}
	node.Parameters = params

	if len(def.RequiredCredentialKinds) > 0 {
		node.Credentials = make(map[string]CredentialRef, len(def.RequiredCredentialKinds))
		for _, kind := range def.RequiredCredentialKinds {
			node.Credentials[kind] = CredentialRef{
				ID:   CredentialPlaceholderID,
				Name: def.DisplayName + " account",
			}
		}
	}
	return node, diags
}

func (a *Assembler) lookup(typeID string) (catalog.NodeDefinition, bool) {
	if a.registry == nil {
		return catalog.NodeDefinition{}, false
	}
	return a.registry.Lookup(typeID)
}

// wire connects columns on main and error handlers on the error channel.
func (a *Assembler) wire(w *Workflow, steps []Step) []Diagnostic {
	var diags []Diagnostic
	var columns [][]int
	for i, s := range steps {
		if s.Kind == KindErrorHandler {
			if i == 0 || steps[i-1].Kind == KindErrorHandler {
				diags = append(diags, Diagnostic{Step: i + 1, Node: w.Nodes[i].Name, Code: DiagOrphanHandler,
					Message: "error handler has no step to guard"})
				continue
			}
			src := w.Nodes[i-1].Name
			nc := w.Connections[src]
			nc.Error = appendTarget(nc.Error, w.Nodes[i].Name)
			w.Connections[src] = nc
			continue
		}
		if len(columns) > 0 && joinsColumn(steps, i) {
			columns[len(columns)-1] = append(columns[len(columns)-1], i)
			continue
		}
		columns = append(columns, []int{i})
	}

	for c := 1; c < len(columns); c++ {
		for _, from := range columns[c-1] {
			src := w.Nodes[from].Name
			nc := w.Connections[src]
			for _, to := range columns[c] {
				nc.Main = appendTarget(nc.Main, w.Nodes[to].Name)
			}
			w.Connections[src] = nc
		}
	}
	return diags
}

func appendTarget(slots [][]Target, name string) [][]Target {
	if len(slots) == 0 {
		slots = [][]Target{{}}
	}
	slots[0] = append(slots[0], Target{Node: name, Type: ChannelMain, Index: 0})
	return slots
}

func nodeName(s Step, def catalog.NodeDefinition, known bool, i int) string {
	for _, candidate := range []string{s.ServiceLabel, s.Description} {
		if n := truncateRunes(strings.TrimSpace(candidate), MaxNameLength); n != "" {
			return n
		}
	}
	if known {
		return truncateRunes(def.DisplayName, MaxNameLength)
	}
	return "Step " + strconv.Itoa(i+1)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// uniqueName returns base, or base with the smallest numeric suffix that is
// not yet taken, and marks the result as taken. The base is shortened so the
// suffixed name stays within MaxNameLength.
func uniqueName(base string, taken map[string]bool) string {
	name := base
	for n := 1; taken[name]; n++ {
		suffix := strconv.Itoa(n)
		name = truncateRunes(base, MaxNameLength-len(suffix)) + suffix
	}
	taken[name] = true
	return name
}
