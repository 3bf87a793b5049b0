// Package drills implements named deterministic failure-injection
// drills. The registry populated by this package is
// empty unless the binary is built with `-tags drills`; Run always exists
// so pkg/kaiza can wire a single run_drill tool unconditionally.
package drills

import (
	"context"
	"fmt"
)

// Report is the outcome of a single drill run, folded into a
// HUMAN_FACTOR_DECISION-adjacent audit entry by the caller rather than
// written directly by the drill itself.
type Report struct {
	Name   string
	Passed bool
	Detail string
}

// Drill is a single named deterministic failure-injection scenario.
type Drill interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Run executes the named drill. Names not present in the build's
// registry (including every name, in a release build with no `drills`
// tag) return an error rather than silently no-op-ing.
func Run(ctx context.Context, name string) (Report, error) {
	d, ok := registry[name]
	if !ok {
		return Report{}, fmt.Errorf("drills: unknown or not-compiled-in drill %q", name)
	}
	return d.Run(ctx)
}

// Names lists the drills compiled into this build.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
