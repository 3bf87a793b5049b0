package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/kaiza"
)

// runReplayCmd implements `kaiza replay <workspace> [--plan-hash=...]
// [--phase-id=...] [--tool=...]`: a one-shot forensic report over the
// ledger, reusing the live `replay_execution` tool so the
// CLI report can never diverge from what a served session would return
// for the same filter.
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	planHash := cmd.String("plan-hash", "", "filter to this plan hash")
	phaseID := cmd.String("phase-id", "", "filter to this phase ID")
	tool := cmd.String("tool", "", "filter to this tool name")
	jsonOut := cmd.Bool("json", false, "output the raw Report as JSON instead of the Markdown summary")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: kaiza replay <workspace> [--plan-hash=...] [--phase-id=...] [--tool=...] [--json]")
		return 2
	}

	k, err := kaiza.New(config.Load(), slog.New(slog.NewTextHandler(stderr, nil)))
	if err != nil {
		fmt.Fprintf(stderr, "startup self-audit failed: %v\n", err)
		return 1
	}
	defer func() { _ = k.Close(context.Background()) }()

	ctx := context.Background()
	if _, err := k.Dispatch(ctx, "initialize", map[string]interface{}{
		"workspace_root": cmd.Arg(0), "role": "EXECUTION",
	}); err != nil {
		fmt.Fprintf(stderr, "initialize failed: %v\n", err)
		return 2
	}

	result, err := k.Dispatch(ctx, "replay_execution", map[string]interface{}{
		"plan_hash": *planHash, "phase_id": *phaseID, "tool": *tool,
	})
	if err != nil {
		fmt.Fprintf(stderr, "replay failed: %v\n", err)
		return 2
	}
	out, ok := result.(map[string]interface{})
	if !ok {
		fmt.Fprintln(stderr, "replay returned an unexpected result shape")
		return 2
	}

	if *jsonOut {
		raw, _ := json.MarshalIndent(out["report"], "", "  ")
		fmt.Fprintln(stdout, string(raw))
	} else {
		fmt.Fprintln(stdout, out["summary"])
	}
	return 0
}
