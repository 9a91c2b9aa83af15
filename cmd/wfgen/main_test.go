package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/config"
)

const planJSON = `[
  {"index": 1, "kind": "Trigger", "description": "Start manually", "nodeTypeId": "n8n-nodes-base.manualTrigger"},
  {"index": 2, "kind": "Action", "description": "Post to the team channel", "serviceLabel": "Slack", "nodeTypeId": "n8n-nodes-base.slack"}
]`

// captureOutput redirects the package streams for the duration of a test.
func captureOutput(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return out, errOut
}

type workflowJSON struct {
	Name        string                    `json:"name"`
	Nodes       []map[string]any          `json:"nodes"`
	Connections map[string]map[string]any `json:"connections"`
	Tags        []string                  `json:"tags"`
}

func readWorkflow(t *testing.T, path string) workflowJSON {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var wf workflowJSON
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("parse output: %v\n%s", err, data)
	}
	return wf
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}

	buf.Reset()
	newLogger(config.LogConfig{Level: "bogus"}, &buf).Info("text")
	if !strings.Contains(buf.String(), "msg=text") {
		t.Errorf("expected text handler at info level, got %q", buf.String())
	}
}

func TestRunGenerate_Offline(t *testing.T) {
	_, errOut := captureOutput(t)
	out := filepath.Join(t.TempDir(), "workflow.json")

	err := runGenerate([]string{"-provider", "mock", "-o", out, "Post", "a", "message", "to", "Slack"})
	if err != nil {
		t.Fatalf("runGenerate: %v", err)
	}

	wf := readWorkflow(t, out)
	if wf.Name == "" || len(wf.Nodes) == 0 {
		t.Fatalf("unexpected workflow: %+v", wf)
	}
	if len(wf.Nodes) > 1 && len(wf.Connections) == 0 {
		t.Errorf("expected connections between %d nodes", len(wf.Nodes))
	}

	progressOut := errOut.String()
	for _, want := range []string{"[  0%]", "[100%]", "fallback: decompose"} {
		if !strings.Contains(progressOut, want) {
			t.Errorf("stderr missing %q:\n%s", want, progressOut)
		}
	}
}

func TestRunGenerate_Quiet(t *testing.T) {
	stdoutBuf, errOut := captureOutput(t)

	if err := runGenerate([]string{"-provider", "mock", "-q", "-full", "Email me a daily report"}); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if strings.Contains(errOut.String(), "%]") {
		t.Errorf("expected no progress with -q, got %q", errOut.String())
	}

	var res struct {
		RequestID string            `json:"requestId"`
		Workflow  workflowJSON      `json:"workflow"`
		Fallbacks []json.RawMessage `json:"fallbacks"`
	}
	if err := json.Unmarshal(stdoutBuf.Bytes(), &res); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if res.RequestID == "" || len(res.Workflow.Nodes) == 0 || len(res.Fallbacks) == 0 {
		t.Errorf("unexpected full result: %+v", res)
	}
}

func TestRunGenerate_Stdin(t *testing.T) {
	out, _ := captureOutput(t)
	prev := stdin
	stdin = strings.NewReader("  Send a Slack message every Monday  \n")
	t.Cleanup(func() { stdin = prev })

	if err := runGenerate([]string{"-provider", "mock", "-q", "-"}); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"nodes"`)) {
		t.Errorf("expected workflow JSON on stdout, got %q", out.String())
	}
}

func TestRunGenerate_Steps(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "workflow.json")

	for i, plan := range []string{planJSON, `{"steps": ` + planJSON + `}`} {
		stepsPath := filepath.Join(dir, "plan.json")
		if err := os.WriteFile(stepsPath, []byte(plan), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := runGenerate([]string{"-provider", "mock", "-steps", stepsPath, "-name", "Notify Team", "-o", out}); err != nil {
			t.Fatalf("plan %d: runGenerate: %v", i, err)
		}
		wf := readWorkflow(t, out)
		if wf.Name != "Notify Team" || len(wf.Nodes) != 2 || len(wf.Connections) != 1 {
			t.Errorf("plan %d: unexpected workflow: %+v", i, wf)
		}
	}
}

func TestRunGenerate_Errors(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	emptyPlan := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(emptyPlan, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no task", []string{"-provider", "mock"}, "task description is required"},
		{"unknown provider", []string{"-provider", "nope", "do it"}, "provider"},
		{"missing steps file", []string{"-provider", "mock", "-steps", filepath.Join(dir, "missing.json")}, "read steps"},
		{"empty plan", []string{"-provider", "mock", "-steps", emptyPlan}, "no steps"},
		{"missing config", []string{"-config", filepath.Join(dir, "missing.yaml"), "do it"}, "missing.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runGenerate(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestRunNodes(t *testing.T) {
	reg := catalog.MustDefault()

	t.Run("lookup", func(t *testing.T) {
		out, _ := captureOutput(t)
		if err := runNodes([]string{"-type", "n8n-nodes-base.slack"}); err != nil {
			t.Fatalf("runNodes: %v", err)
		}
		var def catalog.NodeDefinition
		if err := json.Unmarshal(out.Bytes(), &def); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if def.TypeID != "n8n-nodes-base.slack" {
			t.Errorf("unexpected definition: %+v", def)
		}
	})

	t.Run("lookup unknown", func(t *testing.T) {
		captureOutput(t)
		err := runNodes([]string{"-type", "n8n-nodes-base.unknown"})
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("category json", func(t *testing.T) {
		out, _ := captureOutput(t)
		if err := runNodes([]string{"-category", catalog.CategoryTrigger, "-format", "json"}); err != nil {
			t.Fatalf("runNodes: %v", err)
		}
		var defs []catalog.NodeDefinition
		if err := json.Unmarshal(out.Bytes(), &defs); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(defs) != len(reg.ByCategory(catalog.CategoryTrigger)) {
			t.Errorf("got %d triggers, want %d", len(defs), len(reg.ByCategory(catalog.CategoryTrigger)))
		}
	})

	t.Run("search text", func(t *testing.T) {
		out, _ := captureOutput(t)
		if err := runNodes([]string{"-search", "slack"}); err != nil {
			t.Fatalf("runNodes: %v", err)
		}
		text := out.String()
		if !strings.HasPrefix(text, "TYPE") || !strings.Contains(text, "n8n-nodes-base.slack") {
			t.Errorf("unexpected table:\n%s", text)
		}
	})

	t.Run("search within category", func(t *testing.T) {
		out, _ := captureOutput(t)
		if err := runNodes([]string{"-search", "slack", "-category", catalog.CategoryTrigger, "-format", "json"}); err != nil {
			t.Fatalf("runNodes: %v", err)
		}
		var defs []catalog.NodeDefinition
		if err := json.Unmarshal(out.Bytes(), &defs); err != nil {
			t.Fatalf("parse: %v", err)
		}
		for _, d := range defs {
			if !d.HasCategory(catalog.CategoryTrigger) {
				t.Errorf("%s is not a trigger", d.TypeID)
			}
		}
	})

	t.Run("bad format", func(t *testing.T) {
		captureOutput(t)
		if err := runNodes([]string{"-format", "xml"}); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestReadTask(t *testing.T) {
	if _, err := readTask(nil); err == nil {
		t.Error("expected error for empty task")
	}
	got, err := readTask([]string{"Email", "the", "team"})
	if err != nil || got != "Email the team" {
		t.Errorf("readTask = %q, %v", got, err)
	}
}

func TestCleanupsRunInReverse(t *testing.T) {
	var order []int
	var c cleanups
	c.add(func() { order = append(order, 1) })
	c.add(func() { order = append(order, 2) })
	c.run()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("order = %v, want [2 1]", order)
	}
}
