//go:build !drills

package drills

// registry is empty in release builds: no drill runs, and the wazero
// sandbox dependency pulled in by registry_drills.go is excluded from
// the build entirely.
var registry = map[string]Drill{}
