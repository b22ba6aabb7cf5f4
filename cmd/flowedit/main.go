// Command flowedit lays out, validates, queries and syncs flow documents,
// and serves the flow editor over MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// command is one flowedit subcommand.
type command func(ctx context.Context, cfg Config, args []string, stdout io.Writer) error

var commands = map[string]command{
	"init":     runInit,
	"layout":   runLayout,
	"validate": runValidate,
	"query":    runQuery,
	"pull":     runPull,
	"push":     runPush,
	"run":      runRun,
	"serve":    runServe,
	"preview":  runPreview,
}

const usage = `Usage: flowedit <command> [flags] [args]

Commands:
  init       write ~/.flowedit/settings.json
  layout     lay out a flow document (json, ascii, mermaid, png)
  validate   validate a flow document against the task catalog
  query      run a jq expression over a flow document
  pull       copy flows from the remote API into the draft store
  push       upload a flow document to the remote API
  run        validate inputs and start a remote flow execution
  serve      serve the flow editor as MCP tools over stdio
  preview    serve the read-only draft preview API
  version    print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	name, args := os.Args[1], os.Args[2:]
	switch name {
	case "version", "-v", "--version":
		printVersion(os.Stdout)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, loadConfig(), args, os.Stdout); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
