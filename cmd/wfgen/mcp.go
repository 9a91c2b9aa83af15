package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/wfgen/config"
	wfgenmcp "github.com/GoCodeAlone/wfgen/mcp"
)

// runMCP starts the MCP (Model Context Protocol) server over stdio. Logs go
// to stderr; stdout carries the protocol.
func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a wfgen YAML config file")
	provider := fs.String("provider", "", "Completion provider: auto, anthropic, openai, copilot, ollama or mock")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wfgen mcp [options]

Start the wfgen MCP (Model Context Protocol) server over stdio. It exposes
workflow generation and the node catalog to AI assistants such as Claude
Desktop, VS Code with GitHub Copilot, and Cursor.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Example Claude Desktop configuration (~/.config/claude/claude_desktop_config.json):

  {
    "mcpServers": {
      "wfgen": {
        "command": "wfgen",
        "args": ["mcp", "-config", "/path/to/wfgen.yaml"]
      }
    }
  }
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, done, err := setup(context.Background(), *configPath, func(cfg *config.Config) {
		if *provider != "" {
			cfg.Provider = *provider
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
	wfgenmcp.Version = version
	return wfgenmcp.NewServer(gen).ServeStdio()
}
