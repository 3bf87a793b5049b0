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
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// runVerifyCmd implements `kaiza verify <workspace>`: a one-shot ledger
// chain verification, reusing the same
// `verify_workspace_integrity` tool path a live session would take so
// the CLI and the served transport can never disagree on the verdict.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOut := cmd.Bool("json", false, "output the raw VerifyReport as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: kaiza verify <workspace> [--json]")
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

	result, err := k.Dispatch(ctx, "verify_workspace_integrity", nil)
	if err != nil {
		fmt.Fprintf(stderr, "verify failed: %v\n", err)
		return 2
	}
	report, ok := result.(*kaudit.VerifyReport)
	if !ok {
		fmt.Fprintln(stderr, "verify returned an unexpected result shape")
		return 2
	}

	if *jsonOut {
		raw, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(stdout, string(raw))
	} else {
		fmt.Fprintf(stdout, "status: %s, valid: %t, entries: %d, failures: %d\n",
			report.Status, report.Valid, report.Entries, len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(stdout, "  - seq=%d: %s\n", f.Seq, f.Reason)
		}
	}

	if !report.Valid {
		return 1
	}
	return 0
}
