package kpolicy

import (
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kintent"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
)

// Operation is the write operation kind.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpModify Operation = "MODIFY"
)

// Hit is one matched rule, positioned by line number.
type Hit struct {
	Pattern   string      `json:"pattern"`
	Line      int         `json:"line"`
	Category  Category    `json:"category"`
	Invariant InvariantID `json:"invariant_id"`
}

// Request is the full input to the write-time policy check. Any
// zero-value required field causes an immediate refusal.
type Request struct {
	WorkspaceRoot string
	Role          string
	SessionID     string
	ToolName      string
	PlanHash      string
	PhaseID       string
	Operation     Operation
	Path          string
	ContentBytes  string
	ContentHash   string
	ContentLength int

	IntentRaw string // raw <path>.intent.md content, empty if absent
}

// Verdict is PASS or REFUSE.
type Verdict string

const (
	VerdictPass   Verdict = "PASS"
	VerdictRefuse Verdict = "REFUSE"
)

// Report is the outcome of a write-time policy check.
type Report struct {
	Verdict  Verdict  `json:"verdict"`
	Language Language `json:"detected_language"`
	Hits     []Hit    `json:"hits"`
}

// Engine runs the four-layer write-time check.
type Engine struct {
	resolver *kpath.Resolver
}

// NewEngine returns an Engine bound to the session's path resolver (C1),
// used for Layer 1's path-bounds re-check.
func NewEngine(resolver *kpath.Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Check runs all four layers in order and returns either an error
// (refusal, with the failing kerr.Code) or a PASS Report.
func (e *Engine) Check(req Request) (*Report, error) {
	if err := requireFields(req); err != nil {
		return nil, err
	}

	// Layer 1 — path bounds.
	if _, err := e.resolver.ResolveWriteTarget(req.Path); err != nil {
		return nil, err
	}

	// Layer 2 + 3 — universal denylist, then language profile.
	lang := DetectLanguage(req.Path, req.ContentBytes)
	var hits []Hit
	hits = append(hits, scan(req.ContentBytes, universalDenylist)...)
	if profile, ok := languageProfiles[lang]; ok {
		hits = append(hits, scan(req.ContentBytes, profile)...)
	}

	if len(hits) > 0 {
		code := kerr.CodePolicyViolation
		invariant := string(hits[0].Invariant)
		for _, h := range hits {
			if h.Invariant == InvariantRustRealityLock {
				code = kerr.CodeRustPolicyViolation
				invariant = string(InvariantRustRealityLock)
				break
			}
		}
		return &Report{Verdict: VerdictRefuse, Language: lang, Hits: hits}, kerr.New(
			code,
			"write content violates the write-time policy engine",
			kerr.WithToolName(req.ToolName),
			kerr.WithPlanHash(req.PlanHash),
			kerr.WithPhaseID(req.PhaseID),
			kerr.WithInvariantID(invariant),
		)
	}

	// Layer 4 — intent co-requirement.
	if !kintent.IsExempt(req.Path) {
		if req.IntentRaw == "" {
			return nil, kerr.New(kerr.CodeIntentArtifactMissing, "no intent artifact for write target", kerr.WithToolName(req.ToolName))
		}
		if _, err := kintent.Validate(req.IntentRaw, req.Path, req.PlanHash, req.PhaseID); err != nil {
			return nil, err
		}
	}

	return &Report{Verdict: VerdictPass, Language: lang}, nil
}

func requireFields(req Request) error {
	switch {
	case req.WorkspaceRoot == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing workspace_root")
	case req.Role == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing role")
	case req.SessionID == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing session_id")
	case req.ToolName == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing tool_name")
	case req.PlanHash == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing plan_hash")
	case req.PhaseID == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing phase_id")
	case req.Operation != OpCreate && req.Operation != OpModify:
		return kerr.New(kerr.CodeMissingRequiredField, "operation must be CREATE or MODIFY")
	case req.Path == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing path")
	case req.ContentHash == "":
		return kerr.New(kerr.CodeMissingRequiredField, "missing content_hash")
	case req.ContentLength == 0 && req.ContentBytes != "":
		return kerr.New(kerr.CodeMissingRequiredField, "content_length does not match content_bytes")
	}
	return nil
}

func scan(content string, rules []Rule) []Hit {
	lines := strings.Split(content, "\n")
	var hits []Hit
	for _, rule := range rules {
		for i, line := range lines {
			if rule.Pattern.MatchString(line) {
				hits = append(hits, Hit{
					Pattern:   rule.Label,
					Line:      i + 1,
					Category:  rule.Category,
					Invariant: rule.Invariant,
				})
			}
		}
	}
	return hits
}
