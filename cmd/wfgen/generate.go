package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GoCodeAlone/wfgen/config"
	"github.com/GoCodeAlone/wfgen/graph"
	"github.com/GoCodeAlone/wfgen/progress"
)

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a wfgen YAML config file")
	provider := fs.String("provider", "", "Completion provider: auto, anthropic, openai, copilot, ollama or mock")
	model := fs.String("model", "", "Model name passed to the provider")
	output := fs.String("o", "", "Write the workflow JSON to this file instead of stdout")
	stepsPath := fs.String("steps", "", "Assemble this step plan (JSON file) instead of calling a model")
	name := fs.String("name", "", "Workflow name used with -steps")
	full := fs.Bool("full", false, "Print the full result (steps, fallbacks, diagnostics) instead of just the workflow")
	quiet := fs.Bool("q", false, "Do not print progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wfgen generate [options] <task...>

Generate an importable n8n workflow from a plain-language task. Pass "-" as the
task to read it from stdin. With -steps, a hand-written step plan is assembled
without calling a model.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Examples:
  wfgen generate "Every Friday, summarize Slack messages and email the team"
  wfgen generate -provider mock -o workflow.json "Post new RSS items to Discord"
  wfgen generate -steps plan.json -name "Weekly Digest"
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, done, err := setup(ctx, *configPath, func(cfg *config.Config) {
		if *provider != "" {
			cfg.Provider = *provider
		}
		if *model != "" {
			cfg.Completion.Model = *model
		}
		if *quiet {
			cfg.Log.Level = "error"
		}
	}, stderr, false)
	defer done.run()
	if err != nil {
		return err
	}

	gen, err := deps.newGenerator()
	if err != nil {
		return err
	}

	var result any
	if *stepsPath != "" {
		steps, err := readSteps(*stepsPath)
		if err != nil {
			return err
		}
		wfName := *name
		if wfName == "" {
			wfName = graph.DefaultWorkflowName
		}
		res := gen.AssembleSteps(wfName, steps)
		result = res.Workflow
		if *full {
			result = res
		}
	} else {
		task, err := readTask(fs.Args())
		if err != nil {
			fs.Usage()
			return err
		}
		report := progress.Nop
		if !*quiet {
			report = printProgress(stderr)
		}
		res, err := gen.GenerateWithProgress(ctx, task, report)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if !*quiet {
			for _, fb := range res.Fallbacks {
				fmt.Fprintf(stderr, "fallback: %s: %s\n", fb.Stage, fb.Reason)
			}
		}
		result = res.Workflow
		if *full {
			result = res
		}
	}

	return writeJSON(*output, result)
}

// readTask joins the positional arguments into a task, or reads stdin for "-".
func readTask(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read task from stdin: %w", err)
		}
		args = []string{string(b)}
	}
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return "", errors.New("a task description is required")
	}
	return task, nil
}

// readSteps loads a step plan: a JSON array of steps or an object with a
// "steps" array.
func readSteps(path string) ([]graph.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	var steps []graph.Step
	if err := json.Unmarshal(data, &steps); err != nil {
		var wrapped struct {
			Steps []graph.Step `json:"steps"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse steps %q: %w", path, err)
		}
		steps = wrapped.Steps
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("steps %q: no steps", path)
	}
	return steps, nil
}

func printProgress(w io.Writer) progress.Func {
	return func(e progress.Event) {
		fmt.Fprintf(w, "[%3d%%] %-9s %s\n", e.Percent, e.Stage, e.Message)
	}
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
