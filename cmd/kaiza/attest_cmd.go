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

// runAttestCmd implements `kaiza attest <workspace> [--markdown]`: a
// one-shot attestation bundle generation, reusing the
// live `generate_attestation_bundle`/`export_attestation_bundle` tools so
// the CLI bundle is byte-for-byte what a served session would produce
// over the same ledger state.
func runAttestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("attest", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	markdown := cmd.Bool("markdown", false, "render the bundle as a non-coder Markdown report instead of JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: kaiza attest <workspace> [--markdown]")
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

	result, err := k.Dispatch(ctx, "export_attestation_bundle", nil)
	if err != nil {
		fmt.Fprintf(stderr, "attestation generation failed: %v\n", err)
		return 2
	}
	out, ok := result.(map[string]interface{})
	if !ok {
		fmt.Fprintln(stderr, "attest returned an unexpected result shape")
		return 2
	}

	if *markdown {
		fmt.Fprintln(stdout, out["markdown"])
		return 0
	}
	var pretty interface{}
	if err := json.Unmarshal([]byte(out["json"].(string)), &pretty); err == nil {
		raw, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintln(stdout, string(raw))
	} else {
		fmt.Fprintln(stdout, out["json"])
	}
	return 0
}
