package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/kaiza"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// rpcRequest is one line of the minimal stdio transport: a JSON-RPC-style
// tool call.
type rpcRequest struct {
	ID        json.Number            `json:"id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// rpcResponse carries either a successful {content} or an error
// envelope.
type rpcResponse struct {
	ID      json.Number    `json:"id,omitempty"`
	Content interface{}    `json:"content,omitempty"`
	Error   *kerr.Envelope `json:"error,omitempty"`
}

// runServeCmd runs the JSON-RPC tool transport: one request per line
// on stdin, one response per line on stdout. Framing and correlation
// beyond this line-delimited convention belong to the caller.
func runServeCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	debug := cmd.Bool("debug", false, "log at debug level")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if cfg.FileError != nil {
		logger.Warn("config file not applied; environment values remain in effect", "error", cfg.FileError)
	}
	k, err := kaiza.New(cfg, logger)
	if err != nil {
		// A startup self-audit failure terminates with exit code 1 and a
		// structured diagnostic on stderr; there is no partial-boot mode.
		fmt.Fprintf(stderr, "startup self-audit failed: %v\n", err)
		return 1
	}
	defer func() { _ = k.Close(context.Background()) }()

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(stdout)

	ctx := context.Background()
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// Malformed JSON is rejected at the transport and never
			// reaches Kernel.Dispatch, so no audit entry is produced
			// for it.
			_ = encoder.Encode(rpcResponse{Error: kerr.New(kerr.CodeInvalidInputFormat, "malformed JSON-RPC line: "+err.Error())})
			continue
		}

		result, derr := k.Dispatch(ctx, req.ToolName, req.Arguments)
		if derr != nil {
			env, ok := derr.(*kerr.Envelope)
			if !ok {
				env = kerr.New(kerr.CodeInternalError, derr.Error())
			}
			_ = encoder.Encode(rpcResponse{ID: req.ID, Error: env})
			continue
		}
		_ = encoder.Encode(rpcResponse{ID: req.ID, Content: result})
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "stdin read error: %v\n", err)
		return 1
	}
	return 0
}
