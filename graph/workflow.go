package graph

// Channel names used in a node's connection set.
const (
	ChannelMain  = "main"
	ChannelError = "error"
)

// CredentialPlaceholderID is stamped into every credential reference; it is
// resolved by whoever imports the workflow.
const CredentialPlaceholderID = "{{CREDENTIAL_ID}}"

// StaticTags are attached to every generated workflow.
var StaticTags = []string{"ai-generated", "wfgen"}

// Workflow is the exported n8n-compatible graph. Field order matches the
// import format.
type Workflow struct {
	Name        string                     `json:"name"`
	Nodes       []Node                     `json:"nodes"`
	Connections map[string]NodeConnections `json:"connections"`
	Active      bool                       `json:"active"`
	Settings    Settings                   `json:"settings"`
	Tags        []string                   `json:"tags"`
}

// Node is a positioned, typed unit of execution in a Workflow.
type Node struct {
	Parameters  map[string]any           `json:"parameters"`
	Name        string                   `json:"name"`
	Type        string                   `json:"type"`
	TypeVersion float64                  `json:"typeVersion"`
	Position    [2]int                   `json:"position"`
	ID          string                   `json:"id"`
	Credentials map[string]CredentialRef `json:"credentials,omitempty"`
}

// CredentialRef is a placeholder reference to a credential bound later.
type CredentialRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NodeConnections holds a node's outgoing connections per channel. Each
// channel is a list of output slots; only slot 0 is used.
type NodeConnections struct {
	Main  [][]Target `json:"main,omitempty"`
	Error [][]Target `json:"error,omitempty"`
}

// Target is one connection endpoint.
type Target struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Settings carries the engine execution settings of a workflow.
type Settings struct {
	ExecutionOrder        string `json:"executionOrder"`
	SaveExecutionProgress bool   `json:"saveExecutionProgress"`
	SaveManualExecutions  bool   `json:"saveManualExecutions"`
}

// DefaultSettings returns the settings every generated workflow carries.
func DefaultSettings() Settings {
	return Settings{
		ExecutionOrder:        "v1",
		SaveExecutionProgress: true,
		SaveManualExecutions:  true,
	}
}

// NodeByName returns the node with the given name.
func (w *Workflow) NodeByName(name string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].Name == name {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// MainTargets returns the names connected on main slot 0 of node name.
func (w *Workflow) MainTargets(name string) []string {
	return targetNames(w.Connections[name].Main)
}

// ErrorTargets returns the names connected on error slot 0 of node name.
func (w *Workflow) ErrorTargets(name string) []string {
	return targetNames(w.Connections[name].Error)
}

func targetNames(slots [][]Target) []string {
	if len(slots) == 0 {
		return nil
	}
	out := make([]string, 0, len(slots[0]))
	for _, t := range slots[0] {
		out = append(out, t.Node)
	}
	return out
}
