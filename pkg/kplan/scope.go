package kplan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
)

// ScopeEvaluator compiles a plan's Path Allowlist entries into CEL
// programs once and evaluates candidate write paths against them over a
// single `path` variable. An allowlist entry containing no CEL
// operators or call parentheses is treated as a literal path-prefix
// match, so plain-path plans keep working.
type ScopeEvaluator struct {
	env      *cel.Env
	programs []compiledEntry
}

type compiledEntry struct {
	source  string
	program cel.Program
	literal bool
}

// NewScopeEvaluator compiles allowlist into a ScopeEvaluator.
func NewScopeEvaluator(allowlist []string) (*ScopeEvaluator, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("path", types.StringType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("kplan: cel env: %w", err)
	}

	se := &ScopeEvaluator{env: env}
	for _, entry := range allowlist {
		if !isCELExpression(entry) {
			se.programs = append(se.programs, compiledEntry{source: entry, literal: true})
			continue
		}
		ast, issues := env.Compile(entry)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("kplan: scope constraint %q: %w", entry, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("kplan: scope constraint %q: %w", entry, err)
		}
		se.programs = append(se.programs, compiledEntry{source: entry, program: prg})
	}
	return se, nil
}

// isCELExpression treats any entry containing CEL operator characters or
// a call parenthesis as a compiled expression rather than a literal
// glob/prefix.
func isCELExpression(entry string) bool {
	return strings.ContainsAny(entry, "&|!<>=(")
}

// Allows reports whether relPath is permitted by any allowlist entry.
func (se *ScopeEvaluator) Allows(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, entry := range se.programs {
		if entry.literal {
			if literalAllows(entry.source, relPath) {
				return true
			}
			continue
		}
		out, _, err := entry.program.Eval(map[string]interface{}{"path": relPath})
		if err != nil {
			continue
		}
		if allowed, ok := out.Value().(bool); ok && allowed {
			return true
		}
	}
	return false
}

func literalAllows(pattern, relPath string) bool {
	pattern = filepath.ToSlash(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if pattern == relPath {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(relPath, prefix)
	}
	if ok, _ := filepath.Match(pattern, relPath); ok {
		return true
	}
	return strings.HasPrefix(relPath, strings.TrimSuffix(pattern, "/")+"/")
}
