// Package kcanon provides the two canonicalizers the kernel depends on
// for deterministic hashing: a string-level canonicalizer for plan
// Markdown, and a JSON canonicalizer (RFC 8785 JCS) for everything else
// (audit entries, attestation bundles, proposal evidence).
//
// Keeping them as two small, pure functions is deliberate: divergence
// between them is the most likely source of hash-mismatch bugs, so each
// has its own exhaustive test file.
package kcanon

import (
	"regexp"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
)

// headerCommentRE matches the HTML-comment header that carries the plan's
// hash/status marker, e.g. "<!-- KAIZA_PLAN_HASH: <hex64>... STATUS: APPROVED -->".
var headerCommentRE = regexp.MustCompile(`(?s)<!--\s*KAIZA_PLAN_HASH:.*?-->\s*\n?`)

// CanonicalizePlan reduces plan Markdown to the byte sequence that is
// hashed for identity: strip the header comment, trim the whole
// document, right-trim every line, rejoin with "\n".
func CanonicalizePlan(content string) string {
	stripped := headerCommentRE.ReplaceAllString(content, "")
	stripped = strings.Trim(stripped, " \t\r\n")

	lines := strings.Split(stripped, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n")
}

// CanonicalJSON returns the RFC 8785 canonical JSON bytes for v.
func CanonicalJSON(v interface{}) ([]byte, error) {
	return canonicalize.JCS(v)
}

// CanonicalJSONHash returns the bare hex-64 SHA-256 digest of the
// canonical JSON form of v.
func CanonicalJSONHash(v interface{}) (string, error) {
	return canonicalize.CanonicalHash(v)
}

// PlanHash returns the bare hex-64 SHA-256 digest of a plan's canonical form.
func PlanHash(content string) string {
	return canonicalize.HashBytes([]byte(CanonicalizePlan(content)))
}
