package main

import (
	"fmt"
	"io"
	"os"
)

var version = "dev"

// Standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var commands = map[string]func([]string) error{
	"generate": runGenerate,
	"nodes":    runNodes,
	"serve":    runServe,
	"mcp":      runMCP,
}

func usage() {
	fmt.Fprintf(stderr, `wfgen - natural language to n8n workflow compiler (version %s)

Usage:
  wfgen <command> [options]

Commands:
  generate   Generate a workflow from a task description (or assemble a step plan)
  nodes      Browse the node catalog (list, search, lookup)
  serve      Run the HTTP and WebSocket API
  mcp        Start the MCP server over stdio for AI assistant integration
  version    Print the version

Run 'wfgen <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Fprintln(stdout, version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
