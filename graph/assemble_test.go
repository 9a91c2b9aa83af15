package graph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/GoCodeAlone/wfgen/catalog"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	reg, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	return NewAssembler(reg, WithRules(rules))
}

func fridayDigestSteps() []Step {
	return []Step{
		{Index: 1, Kind: KindTrigger, Description: "Every Friday at 9am", ServiceLabel: "Weekly Schedule", NodeTypeID: "n8n-nodes-base.scheduleTrigger"},
		{Index: 2, Kind: KindProcess, Description: "Read the week's Slack messages", ServiceLabel: "Slack", NodeTypeID: "n8n-nodes-base.slack"},
		{Index: 3, Kind: KindTransform, Description: "Summarize the messages", ServiceLabel: "OpenAI", NodeTypeID: "@n8n/n8n-nodes-langchain.openAi"},
		{Index: 4, Kind: KindAction, Description: "Email the summary to the team", ServiceLabel: "Send Email", NodeTypeID: "n8n-nodes-base.emailSend"},
		{Index: 5, Kind: KindErrorHandler, Description: "Report email failures", ServiceLabel: "Email Failed", NodeTypeID: "n8n-nodes-base.stopAndError"},
	}
}

func TestAssembleStructuralSoundness(t *testing.T) {
	a := testAssembler(t)
	inputs := map[string][]Step{
		"digest": fridayDigestSteps(),
		"empty":  nil,
		"unknown and duplicates": {
			{Index: 1, Kind: KindTrigger, NodeTypeID: "n8n-nodes-base.manualTrigger"},
			{Index: 2, Kind: KindAction, ServiceLabel: "Slack", NodeTypeID: "n8n-nodes-base.slack", Parallelizable: true},
			{Index: 3, Kind: KindAction, ServiceLabel: "Slack", NodeTypeID: "n8n-nodes-base.slack", Parallelizable: true},
			{Index: 4, Kind: KindErrorHandler, NodeTypeID: "n8n-nodes-base.stopAndError"},
			{Index: 5, Kind: KindErrorHandler, NodeTypeID: "n8n-nodes-base.stopAndError"},
			{Index: 6, Kind: KindProcess, NodeTypeID: "does.not.exist"},
		},
	}
	for name, steps := range inputs {
		t.Run(name, func(t *testing.T) {
			w, _ := a.Assemble("test", steps)
			if len(w.Nodes) != len(steps) {
				t.Fatalf("got %d nodes for %d steps", len(w.Nodes), len(steps))
			}
			ids := map[string]bool{}
			names := map[string]bool{}
			for _, n := range w.Nodes {
				if ids[n.ID] {
					t.Errorf("duplicate id %s", n.ID)
				}
				ids[n.ID] = true
				names[n.Name] = true
			}
			for src, nc := range w.Connections {
				if !names[src] {
					t.Errorf("connection source %q is not a node", src)
				}
				for _, slot := range append(append([][]Target{}, nc.Main...), nc.Error...) {
					for _, tgt := range slot {
						if !names[tgt.Node] {
							t.Errorf("dangling target %q from %q", tgt.Node, src)
						}
					}
				}
			}
			if err := Check(w, nil); len(steps) > 0 && err != nil {
				t.Errorf("Check: %v", err)
			}
		})
	}
}

func TestAssembleErrorChannel(t *testing.T) {
	a := testAssembler(t)
	steps := fridayDigestSteps()
	w, _ := a.Assemble("digest", steps)

	handler := w.Nodes[4].Name
	email := w.Nodes[3].Name
	if got := w.ErrorTargets(email); !reflect.DeepEqual(got, []string{handler}) {
		t.Errorf("error targets of %q = %v, want [%s]", email, got, handler)
	}
	for src, nc := range w.Connections {
		for _, slot := range nc.Main {
			for _, tgt := range slot {
				if tgt.Node == handler {
					t.Errorf("error handler reachable on main from %q", src)
				}
			}
		}
		if src != email && len(nc.Error) > 0 {
			t.Errorf("unexpected error channel on %q", src)
		}
	}
	if _, ok := w.Connections[handler]; ok {
		t.Error("error handler must be terminal")
	}
	if got := w.MainTargets(email); len(got) != 0 {
		t.Errorf("last guarded step has main targets %v", got)
	}
}

func TestAssembleGuardedStepContinuesOnMain(t *testing.T) {
	a := testAssembler(t)
	steps := []Step{
		{Kind: KindTrigger, ServiceLabel: "Start", NodeTypeID: "n8n-nodes-base.manualTrigger"},
		{Kind: KindAction, ServiceLabel: "Call API", NodeTypeID: "n8n-nodes-base.httpRequest"},
		{Kind: KindErrorHandler, ServiceLabel: "API Failed", NodeTypeID: "n8n-nodes-base.stopAndError"},
		{Kind: KindAction, ServiceLabel: "Notify", NodeTypeID: "n8n-nodes-base.slack"},
	}
	w, _ := a.Assemble("api", steps)
	if got := w.MainTargets("Call API"); !reflect.DeepEqual(got, []string{"Notify"}) {
		t.Errorf("main targets of guarded step = %v, want [Notify]", got)
	}
	if got := w.ErrorTargets("Call API"); !reflect.DeepEqual(got, []string{"API Failed"}) {
		t.Errorf("error targets = %v", got)
	}
}

func TestAssembleParallelLayoutAndFanOut(t *testing.T) {
	a := testAssembler(t)
	steps := []Step{
		{Kind: KindTrigger, ServiceLabel: "Start", NodeTypeID: "n8n-nodes-base.manualTrigger"},
		{Kind: KindAction, ServiceLabel: "A", NodeTypeID: "n8n-nodes-base.httpRequest", Parallelizable: true},
		{Kind: KindAction, ServiceLabel: "B", NodeTypeID: "n8n-nodes-base.httpRequest", Parallelizable: true},
		{Kind: KindAction, ServiceLabel: "C", NodeTypeID: "n8n-nodes-base.httpRequest", Parallelizable: true},
		{Kind: KindLogic, ServiceLabel: "Merge", NodeTypeID: "n8n-nodes-base.merge"},
	}
	w, _ := a.Assemble("parallel", steps)

	want := [][2]int{{250, 300}, {470, 300}, {470, 450}, {470, 600}, {690, 300}}
	for i, n := range w.Nodes {
		if n.Position != want[i] {
			t.Errorf("node %d position = %v, want %v", i, n.Position, want[i])
		}
	}
	if got := w.MainTargets("Start"); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("fan-out = %v", got)
	}
	for _, src := range []string{"A", "B", "C"} {
		if got := w.MainTargets(src); !reflect.DeepEqual(got, []string{"Merge"}) {
			t.Errorf("fan-in from %s = %v", src, got)
		}
	}
}

func TestLayoutMonotonicity(t *testing.T) {
	steps := []Step{
		{Kind: KindTrigger},
		{Kind: KindProcess, Parallelizable: true},
		{Kind: KindProcess, Parallelizable: true},
		{Kind: KindAction},
		{Kind: KindErrorHandler},
		{Kind: KindProcess, Parallelizable: true},
		{Kind: KindProcess, Parallelizable: true},
		{Kind: KindProcess, Parallelizable: true},
	}
	pos := DefaultLayout.Positions(steps)
	for i := 1; i < len(steps); i++ {
		if joinsColumn(steps, i) {
			if pos[i][0] != pos[i-1][0] || pos[i][1] <= pos[i-1][1] {
				t.Errorf("step %d in a parallel run: %v after %v", i, pos[i], pos[i-1])
			}
			continue
		}
		if pos[i][0] <= pos[i-1][0] || pos[i][1] != DefaultLayout.StartY {
			t.Errorf("step %d opens a column: %v after %v", i, pos[i], pos[i-1])
		}
	}
}

func TestAssembleUnknownType(t *testing.T) {
	a := testAssembler(t)
	steps := []Step{
		{Kind: KindTrigger, NodeTypeID: "n8n-nodes-base.manualTrigger"},
		{Kind: KindAction, ServiceLabel: "Mystery", NodeTypeID: "acme.mystery"},
	}
	w, diags := a.Assemble("unknown", steps)
	n := w.Nodes[1]
	if len(n.Parameters) != 0 {
		t.Errorf("parameters = %v, want empty", n.Parameters)
	}
	if n.Credentials != nil {
		t.Errorf("credentials = %v, want none", n.Credentials)
	}
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `"credentials"`) {
		t.Errorf("credentials key present in %s", raw)
	}
	if !strings.Contains(string(raw), `"parameters":{}`) {
		t.Errorf("parameters not an empty object in %s", raw)
	}
	found := false
	for _, d := range diags {
		if d.Code == DiagUnknownType && d.Step == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("no unknown_type diagnostic in %v", diags)
	}
}

func TestAssembleNamesAndCredentials(t *testing.T) {
	a := testAssembler(t)
	steps := []Step{
		{Kind: KindTrigger, Description: "Run it", NodeTypeID: "n8n-nodes-base.manualTrigger"},
		{Kind: KindAction, ServiceLabel: "Slack", NodeTypeID: "n8n-nodes-base.slack"},
		{Kind: KindAction, ServiceLabel: "Slack", NodeTypeID: "n8n-nodes-base.slack"},
		{Kind: KindAction, ServiceLabel: "A very long service label that keeps going", NodeTypeID: "n8n-nodes-base.noOp"},
		{Kind: KindAction, NodeTypeID: "n8n-nodes-base.noOp"},
	}
	w, _ := a.Assemble("", steps)
	if w.Name != DefaultWorkflowName {
		t.Errorf("workflow name = %q", w.Name)
	}
	wantNames := []string{"Run it", "Slack", "Slack1", "A very long service label that", "No Operation"}
	for i, n := range w.Nodes {
		if n.Name != wantNames[i] {
			t.Errorf("node %d name = %q, want %q", i, n.Name, wantNames[i])
		}
		if n.ID != "node-"+string(rune('1'+i)) {
			t.Errorf("node %d id = %q", i, n.ID)
		}
	}
	cred, ok := w.Nodes[1].Credentials["slackApi"]
	if !ok || cred.ID != CredentialPlaceholderID || cred.Name != "Slack account" {
		t.Errorf("slack credentials = %+v", w.Nodes[1].Credentials)
	}
	if w.Nodes[0].Credentials != nil {
		t.Error("manual trigger should carry no credentials")
	}
}

func TestAssembleDuplicateLongNamesStayBounded(t *testing.T) {
	label := "A very long service label that keeps going"
	steps := []Step{{Kind: KindTrigger, NodeTypeID: "n8n-nodes-base.manualTrigger"}}
	for range 12 {
		steps = append(steps, Step{Kind: KindAction, ServiceLabel: label, NodeTypeID: "n8n-nodes-base.noOp"})
	}
	w, _ := testAssembler(t).Assemble("long names", steps)

	seen := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if got := len([]rune(n.Name)); got > MaxNameLength {
			t.Errorf("name %q has %d runes, want at most %d", n.Name, got, MaxNameLength)
		}
		if seen[n.Name] {
			t.Errorf("duplicate name %q", n.Name)
		}
		seen[n.Name] = true
	}
	for i, want := range map[int]string{
		1:  "A very long service label that",
		2:  "A very long service label tha1",
		11: "A very long service label th10",
	} {
		if w.Nodes[i].Name != want {
			t.Errorf("node %d name = %q, want %q", i, w.Nodes[i].Name, want)
		}
	}
	if err := Check(w, nil); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestAssembleAppliesRules(t *testing.T) {
	a := testAssembler(t)
	w, diags := a.Assemble("digest", fridayDigestSteps())
	for _, d := range diags {
		if d.Code == DiagParameter || d.Code == DiagRule {
			t.Errorf("unexpected diagnostic %s", d)
		}
	}

	rule := w.Nodes[0].Parameters["rule"].(map[string]any)
	interval := rule["interval"].([]any)[0].(map[string]any)
	if interval["field"] != "weeks" || fmt.Sprint(interval["triggerAtHour"]) != "9" {
		t.Errorf("schedule interval = %v", interval)
	}
	if days := interval["triggerAtDay"].([]any); len(days) != 1 || fmt.Sprint(days[0]) != "5" {
		t.Errorf("triggerAtDay = %v, want [5]", days)
	}

	if op := w.Nodes[1].Parameters["operation"]; op != "history" {
		t.Errorf("slack operation = %v, want history", op)
	}
	email := w.Nodes[3].Parameters
	if email["subject"] != "Email the summary to the team" {
		t.Errorf("email subject = %v", email["subject"])
	}
	if msg, _ := w.Nodes[4].Parameters["errorMessage"].(string); msg != "Step failed: Email Failed" {
		t.Errorf("error message = %q", msg)
	}
}

func TestAssembleWithoutRulesKeepsExamples(t *testing.T) {
	reg := catalog.MustDefault()
	a := NewAssembler(reg)
	w, _ := a.Assemble("plain", fridayDigestSteps())
	def, _ := reg.Lookup("n8n-nodes-base.emailSend")
	if !reflect.DeepEqual(w.Nodes[3].Parameters, def.ExampleParameters) {
		t.Errorf("parameters = %v, want example %v", w.Nodes[3].Parameters, def.ExampleParameters)
	}
	w.Nodes[3].Parameters["subject"] = "changed"
	if def2, _ := reg.Lookup("n8n-nodes-base.emailSend"); def2.ExampleParameters["subject"] == "changed" {
		t.Error("assembled parameters alias the catalog example")
	}
}

func TestWorkflowJSONShape(t *testing.T) {
	a := testAssembler(t)
	w, _ := a.Assemble("digest", fridayDigestSteps())
	raw, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"name", "nodes", "connections", "active", "settings", "tags"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	if generic["active"] != false {
		t.Error("active must be false")
	}
	settings := generic["settings"].(map[string]any)
	if settings["executionOrder"] != "v1" || settings["saveExecutionProgress"] != true || settings["saveManualExecutions"] != true {
		t.Errorf("settings = %v", settings)
	}
	if !reflect.DeepEqual(generic["tags"], []any{"ai-generated", "wfgen"}) {
		t.Errorf("tags = %v", generic["tags"])
	}
	node := generic["nodes"].([]any)[0].(map[string]any)
	if pos := node["position"].([]any); len(pos) != 2 || pos[0] != 250.0 || pos[1] != 300.0 {
		t.Errorf("position = %v", pos)
	}
	if !strings.HasPrefix(string(raw), `{"name":"digest","nodes":[{"parameters":`) {
		t.Errorf("unexpected field order: %.60s", raw)
	}
	conn := generic["connections"].(map[string]any)["Send Email"].(map[string]any)
	target := conn["error"].([]any)[0].([]any)[0].(map[string]any)
	if target["node"] != "Email Failed" || target["type"] != "main" || target["index"] != 0.0 {
		t.Errorf("error target = %v", target)
	}
}
