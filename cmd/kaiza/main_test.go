package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/kaiza"
)

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"kaiza", "frobnicate"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestRun_HelpPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"kaiza", "help"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Usage: kaiza")
}

func TestRun_VerifyOnFreshWorkspace(t *testing.T) {
	ws := t.TempDir()

	// A workspace with a bound session but no writes yet still has a
	// ledger containing the initialize entry, so the chain is valid and
	// non-empty.
	k, err := kaiza.New(config.Load(), slog.Default())
	require.NoError(t, err)
	_, err = k.Dispatch(context.Background(), "initialize", map[string]interface{}{
		"workspace_root": ws, "role": "EXECUTION",
	})
	require.NoError(t, err)
	require.NoError(t, k.Close(context.Background()))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"kaiza", "verify", ws}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "valid: true")
}

func TestRun_VerifyMissingWorkspaceArg(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"kaiza", "verify"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func TestRun_ServeHandlesOneRoundTrip(t *testing.T) {
	ws := t.TempDir()
	req := `{"id":"1","tool_name":"initialize","arguments":{"workspace_root":"` + ws + `","role":"EXECUTION"}}` + "\n"

	var stdout, stderr bytes.Buffer
	code := Run([]string{"kaiza", "serve"}, strings.NewReader(req), &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"session_id"`)
}
