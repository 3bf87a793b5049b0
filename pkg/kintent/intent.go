// Package kintent implements the intent artifact validator: every
// written file except failure reports under docs/reports/ must be
// accompanied by a `<target>.intent.md` document with nine fixed
// sections binding the write to its authorizing plan and phase.
package kintent

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
)

// SectionOrder is the nine mandatory sections, in their required order.
var SectionOrder = []string{
	"Title",
	"Purpose",
	"Authority",
	"Inputs",
	"Outputs",
	"Invariants",
	"Failure Modes",
	"Debug Signals",
	"Out-of-Scope",
}

// Artifact is a parsed intent document.
type Artifact struct {
	Raw      string
	Sections map[string]string
	Order    []string
}

var sectionHeaderRE = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
var titleLineRE = regexp.MustCompile(`(?m)^#\s+Intent:\s*(.+?)\s*$`)
var planHashLineRE = regexp.MustCompile(`(?mi)^\s*[-*]?\s*Plan Hash:\s*([a-f0-9]{64})\s*$`)
var phaseIDLineRE = regexp.MustCompile(`(?mi)^\s*[-*]?\s*Phase ID:\s*(PHASE_[A-Z0-9_]+)\s*$`)

// Parse splits raw intent Markdown into its title line plus `##`-headed
// sections.
func Parse(raw string) *Artifact {
	a := &Artifact{Raw: raw, Sections: map[string]string{}}

	if m := titleLineRE.FindStringSubmatch(raw); m != nil {
		a.Sections["Title"] = strings.TrimSpace(m[1])
		a.Order = append(a.Order, "Title")
	}

	locs := sectionHeaderRE.FindAllStringSubmatchIndex(raw, -1)
	names := sectionHeaderRE.FindAllStringSubmatch(raw, -1)
	for i, loc := range locs {
		name := strings.TrimSpace(names[i][1])
		start := loc[1]
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		a.Sections[name] = strings.TrimSpace(raw[start:end])
		a.Order = append(a.Order, name)
	}
	return a
}

// Hash returns the deterministic content hash used to detect drift:
// identical content must always produce the identical hash.
func Hash(raw string) string {
	trimmed := strings.TrimRight(raw, " \t\r\n")
	return canonicalize.HashBytes([]byte(trimmed))
}

// errf is a small helper building a fmt.Sprintf'd violation detail.
func errf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// relPathCaseSensitive normalizes to forward slashes without altering case.
func relPathCaseSensitive(p string) string {
	return filepath.ToSlash(p)
}
