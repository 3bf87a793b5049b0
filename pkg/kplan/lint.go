package kplan

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Violation is one structural lint failure.
type Violation struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// LintResult is the outcome of linting a plan document.
type LintResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

var ambiguousLanguageRE = regexp.MustCompile(`(?i)\b(may|should|could|if possible|try to|use best judgment)\b`)
var codeSymbolRE = regexp.MustCompile("[`{};]|=>")
var phaseIDRE = regexp.MustCompile(`^[A-Z0-9_]+$`)

// Lint enforces the structural plan rules against raw plan content.
// Every violation found is reported; the caller refuses the operation
// with the full violation list on any failure.
func Lint(raw string) *LintResult {
	result := &LintResult{Valid: true}
	add := func(rule, detail string) {
		result.Valid = false
		result.Violations = append(result.Violations, Violation{Rule: rule, Detail: detail})
	}

	p := Parse(raw)

	lintSectionPresenceAndOrder(p, add)
	lintPhases(p, add)
	lintPathAllowlist(p, add)
	lintAmbiguousLanguage(raw, add)
	lintObjectiveCodeSymbols(p, add)

	return result
}

func lintSectionPresenceAndOrder(p *Plan, add func(string, string)) {
	present := make([]string, 0, len(p.SectionOrder))
	for _, s := range p.SectionOrder {
		for _, canon := range CanonicalSections {
			if s == canon {
				present = append(present, s)
				break
			}
		}
	}

	for _, canon := range CanonicalSections {
		if _, ok := p.Sections[canon]; !ok {
			add("MISSING_SECTION", fmt.Sprintf("required section %q is missing", canon))
		}
	}

	expected := 0
	for _, s := range present {
		for expected < len(CanonicalSections) && CanonicalSections[expected] != s {
			expected++
		}
		if expected >= len(CanonicalSections) {
			add("SECTION_OUT_OF_ORDER", fmt.Sprintf("section %q appears out of canonical order", s))
			break
		}
		expected++
	}
}

func lintPhases(p *Plan, add func(string, string)) {
	if len(p.Phases) == 0 {
		add("NO_PHASES", "plan must define at least one phase")
		return
	}

	seen := map[string]bool{}
	for i, ph := range p.Phases {
		label := fmt.Sprintf("phase[%d]", i)
		if ph.ID == "" {
			add("PHASE_MISSING_FIELD", label+": missing Phase ID")
		} else {
			label = ph.ID
			if !phaseIDRE.MatchString(ph.ID) {
				add("PHASE_ID_FORMAT", fmt.Sprintf("%s: Phase ID must match [A-Z0-9_]+", label))
			}
			if seen[ph.ID] {
				add("PHASE_ID_DUPLICATE", fmt.Sprintf("%s: Phase ID is not unique", label))
			}
			seen[ph.ID] = true
		}
		if ph.Objective == "" {
			add("PHASE_MISSING_FIELD", label+": missing Objective")
		}
		if ph.AllowedOperations == nil {
			add("PHASE_MISSING_FIELD", label+": missing Allowed operations")
		}
		if ph.ForbiddenOperations == nil {
			add("PHASE_MISSING_FIELD", label+": missing Forbidden operations")
		}
		if ph.RequiredIntentArtifacts == nil {
			add("PHASE_MISSING_FIELD", label+": missing Required intent artifacts")
		}
		if ph.VerificationCommands == nil {
			add("PHASE_MISSING_FIELD", label+": missing Verification commands")
		}
		if ph.ExpectedOutcomes == nil {
			add("PHASE_MISSING_FIELD", label+": missing Expected outcomes")
		}
		if ph.FailureStopConditions == nil {
			add("PHASE_MISSING_FIELD", label+": missing Failure stop conditions")
		}
	}
}

func lintPathAllowlist(p *Plan, add func(string, string)) {
	for _, entry := range p.PathAllowlist {
		if filepath.IsAbs(entry) {
			add("PATH_ALLOWLIST_ABSOLUTE", fmt.Sprintf("entry %q is an absolute path", entry))
			continue
		}
		if strings.Contains(entry, "..") {
			add("PATH_ALLOWLIST_ESCAPE", fmt.Sprintf(`entry %q contains a ".." escape`, entry))
			continue
		}
		if strings.Contains(entry, "${") || strings.Contains(entry, "$(") {
			add("PATH_ALLOWLIST_UNRESOLVED_VAR", fmt.Sprintf("entry %q contains an unresolved variable", entry))
		}
	}
}

func lintAmbiguousLanguage(raw string, add func(string, string)) {
	for _, m := range ambiguousLanguageRE.FindAllString(raw, -1) {
		add("AMBIGUOUS_LANGUAGE", fmt.Sprintf("ambiguous modal %q found; use MUST/MUST NOT/SHALL/REQUIRED/FORBIDDEN", m))
	}
}

func lintObjectiveCodeSymbols(p *Plan, add func(string, string)) {
	for _, ph := range p.Phases {
		if codeSymbolRE.MatchString(ph.Objective) {
			add("OBJECTIVE_CODE_SYMBOLS", fmt.Sprintf("phase %q objective contains code symbols", ph.ID))
		}
	}
}
