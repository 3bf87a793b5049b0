package kintent

import (
	"regexp"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// ValidationResult is the outcome of validating one intent artifact.
type ValidationResult struct {
	Valid      bool      `json:"valid"`
	Violations []string  `json:"violations"`
	Code       kerr.Code `json:"code,omitempty"`
}

var codeSymbolRE = regexp.MustCompile("[`{};]|=>")
var conditionalLanguageRE = regexp.MustCompile(`(?i)\b(might|should|could)\b|\bif\b.{0,40}\bthen\b`)
var codeFenceRE = regexp.MustCompile("(?s)```.*?```")
var braceSemiArrowRE = regexp.MustCompile(`[{};]|=>`)
var timestampRE = regexp.MustCompile(`\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2})?)?`)
var authorAttributionRE = regexp.MustCompile(`(?im)^\s*(Author|By|Written by)\s*:`)
var workMarkerRE = regexp.MustCompile(`\b(TODO|FIXME|HACK)\b`)
var bareURLRE = regexp.MustCompile(`https?://\S+`)

// IsExempt reports whether relPath is exempt from intent-artifact
// requirements.
func IsExempt(relPath string) bool {
	p := relPathCaseSensitive(relPath)
	return strings.HasPrefix(p, "docs/reports/")
}

// Validate enforces the nine-section schema against raw intent artifact
// content for a write targeting targetRelPath under the given executing
// plan hash and phase ID. The returned error's Code identifies which failure
// family fired first; Violations inside ValidationResult lists every
// structural problem found regardless of which error is returned.
func Validate(raw, targetRelPath, planHash, phaseID string) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}
	add := func(v string) {
		result.Valid = false
		result.Violations = append(result.Violations, v)
	}

	a := Parse(raw)

	missing := false
	order := 0
	for _, name := range SectionOrder {
		body, ok := a.Sections[name]
		if !ok || (name != "Title" && strings.TrimSpace(body) == "") {
			add("missing or empty section: " + name)
			missing = true
			continue
		}
		for order < len(a.Order) && a.Order[order] != name {
			order++
		}
		if order >= len(a.Order) {
			add("section out of canonical order: " + name)
			missing = true
			break
		}
		order++
	}
	if missing {
		result.Code = kerr.CodeIntentSchemaInvalid
		return result, kerr.New(kerr.CodeIntentSchemaInvalid, "intent artifact fails structural validation", kerr.WithToolName("intent_validate"))
	}

	wantTitle := "# Intent: " + relPathCaseSensitive(targetRelPath)
	gotTitle := "# Intent: " + a.Sections["Title"]
	if gotTitle != wantTitle {
		add(errf("title %q does not exactly match target path %q", gotTitle, wantTitle))
		result.Code = kerr.CodeIntentPathConsistency
		return result, kerr.New(kerr.CodeIntentPathConsistency, "intent title does not match target path", kerr.WithToolName("intent_validate"))
	}

	authority := a.Sections["Authority"]
	planMatch := planHashLineRE.FindStringSubmatch(authority)
	phaseMatch := phaseIDLineRE.FindStringSubmatch(authority)
	if planMatch == nil || planMatch[1] != planHash || phaseMatch == nil || phaseMatch[1] != phaseID {
		add("Authority section plan hash / phase ID does not match the executing plan and phase")
		result.Code = kerr.CodeIntentAuthorityDrift
		return result, kerr.New(kerr.CodeIntentAuthorityDrift, "intent authority drift", kerr.WithToolName("intent_validate"), kerr.WithPlanHash(planHash), kerr.WithPhaseID(phaseID))
	}

	if codeSymbolRE.MatchString(a.Sections["Purpose"]) {
		add("Purpose section contains code symbols")
	}
	if codeSymbolRE.MatchString(a.Sections["Invariants"]) {
		add("Invariants section contains code symbols")
	}
	if conditionalLanguageRE.MatchString(a.Sections["Invariants"]) {
		add("Invariants section contains conditional language")
	}

	if violation := findForbiddenPattern(raw, authority); violation != "" {
		add(violation)
		result.Code = kerr.CodeIntentForbiddenPatterns
		return result, kerr.New(kerr.CodeIntentForbiddenPatterns, "intent artifact contains forbidden patterns", kerr.WithToolName("intent_validate"))
	}

	if len(result.Violations) > 0 {
		result.Code = kerr.CodeIntentSchemaInvalid
		return result, kerr.New(kerr.CodeIntentSchemaInvalid, "intent artifact fails structural validation", kerr.WithToolName("intent_validate"))
	}

	return result, nil
}

// findForbiddenPattern scans the whole document (minus the Authority
// section, which legitimately carries identifiers) for banned patterns,
// returning a human-readable description of the first one found.
func findForbiddenPattern(raw, authority string) string {
	scan := raw
	if authority != "" {
		scan = strings.Replace(raw, authority, "", 1)
	}

	switch {
	case codeFenceRE.MatchString(scan):
		return "contains a triple-backtick code fence"
	case braceSemiArrowRE.MatchString(scan):
		return "contains forbidden symbols ({}, ;, or =>)"
	case timestampRE.MatchString(scan):
		return "contains a timestamp"
	case authorAttributionRE.MatchString(scan):
		return "contains an author attribution"
	case workMarkerRE.MatchString(scan):
		return "contains a work marker (TODO/FIXME/HACK)"
	case bareURLRE.MatchString(scan):
		return "contains a bare URL outside the Authority section"
	}
	return ""
}
