// Package kplan implements the plan registry and linter: structural
// validation of a plan's seven mandatory sections and per-phase fields,
// hash addressing via pkg/kcanon, STATUS:APPROVED header enforcement,
// and immutability checks at execution time.
package kplan

import (
	"regexp"
	"strings"
)

// CanonicalSections is the fixed, ordered list of mandatory top-level
// sections a plan must contain.
var CanonicalSections = []string{
	"Metadata",
	"Scope & Constraints",
	"Phase Definitions",
	"Path Allowlist",
	"Verification Gates",
	"Forbidden Actions",
	"Rollback Policy",
}

// PhaseFieldNames is the fixed set of eight mandatory phase fields.
var PhaseFieldNames = []string{
	"Phase ID",
	"Objective",
	"Allowed Operations",
	"Forbidden Operations",
	"Required Intent Artifacts",
	"Verification Commands",
	"Expected Outcomes",
	"Failure Stop Conditions",
}

// Phase is one mandatory phase block within a Phase Definitions section.
type Phase struct {
	ID                      string
	Objective               string
	AllowedOperations       []string
	ForbiddenOperations     []string
	RequiredIntentArtifacts []string
	VerificationCommands    []string
	ExpectedOutcomes        []string
	FailureStopConditions   []string
}

// Status is the plan approval marker embedded in the header comment.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusApproved Status = "APPROVED"
)

// Header is the parsed content of the `<!-- KAIZA_PLAN_HASH:... -->`
// comment block that carries the status and content hash marker.
type Header struct {
	Status        Status
	Hash          string
	SchemaVersion string
}

// Plan is a parsed plan document.
type Plan struct {
	Raw           string
	Header        Header
	Sections      map[string]string // section name -> raw body
	SectionOrder  []string
	Phases        []Phase
	PathAllowlist []string
}

var sectionHeaderRE = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
var phaseHeaderRE = regexp.MustCompile(`(?m)^###\s+Phase:\s*(.+?)\s*$`)
var fieldLineRE = regexp.MustCompile(`(?m)^\s*-?\s*\*{0,2}([A-Za-z ]+)\*{0,2}:\s*(.*)$`)
var headerMarkerRE = regexp.MustCompile(`(?s)<!--\s*KAIZA_PLAN_HASH:\s*([a-f0-9]*)\s*STATUS:\s*([A-Z]+)\s*(?:SCHEMA_VERSION:\s*(\S+)\s*)?-->`)
var listItemRE = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`)

// Parse parses raw plan Markdown into a Plan. Parse does not validate;
// call Lint on the result for structural enforcement.
func Parse(raw string) *Plan {
	p := &Plan{Raw: raw, Sections: map[string]string{}}

	if m := headerMarkerRE.FindStringSubmatch(raw); m != nil {
		p.Header.Hash = m[1]
		p.Header.Status = Status(m[2])
		if len(m) > 3 {
			p.Header.SchemaVersion = m[3]
		}
	}

	body := headerMarkerRE.ReplaceAllString(raw, "")

	locs := sectionHeaderRE.FindAllStringSubmatchIndex(body, -1)
	names := sectionHeaderRE.FindAllStringSubmatch(body, -1)
	for i, loc := range locs {
		name := strings.TrimSpace(names[i][1])
		start := loc[1]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		p.Sections[name] = strings.TrimSpace(body[start:end])
		p.SectionOrder = append(p.SectionOrder, name)
	}

	if phasesBody, ok := p.Sections["Phase Definitions"]; ok {
		p.Phases = parsePhases(phasesBody)
	}
	if allowBody, ok := p.Sections["Path Allowlist"]; ok {
		for _, m := range listItemRE.FindAllStringSubmatch(allowBody, -1) {
			p.PathAllowlist = append(p.PathAllowlist, strings.TrimSpace(m[1]))
		}
	}

	return p
}

func parsePhases(body string) []Phase {
	locs := phaseHeaderRE.FindAllStringSubmatchIndex(body, -1)
	if locs == nil {
		return nil
	}
	var phases []Phase
	for i, loc := range locs {
		start := loc[1]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		phases = append(phases, parsePhaseFields(body[start:end]))
	}
	return phases
}

func parsePhaseFields(block string) Phase {
	var ph Phase
	for _, m := range fieldLineRE.FindAllStringSubmatch(block, -1) {
		name := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		switch name {
		case "Phase ID":
			ph.ID = value
		case "Objective":
			ph.Objective = value
		case "Allowed Operations":
			ph.AllowedOperations = splitCSV(value)
		case "Forbidden Operations":
			ph.ForbiddenOperations = splitCSV(value)
		case "Required Intent Artifacts":
			ph.RequiredIntentArtifacts = splitCSV(value)
		case "Verification Commands":
			ph.VerificationCommands = splitCSV(value)
		case "Expected Outcomes":
			ph.ExpectedOutcomes = splitCSV(value)
		case "Failure Stop Conditions":
			ph.FailureStopConditions = splitCSV(value)
		}
	}
	return ph
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
