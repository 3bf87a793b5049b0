package kintent

import (
	"fmt"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func validIntent(target, phase string) string {
	return fmt.Sprintf(`# Intent: %s

## Purpose
Create the initial source file for the bootstrap phase.

## Authority
- Plan Hash: %s
- Phase ID: %s

## Inputs
None.

## Outputs
%s is created with fixed content.

## Invariants
The file MUST contain exactly one line.

## Failure Modes
Write fails if the parent directory is missing.

## Debug Signals
Audit ledger entry with tool write_file.

## Out-of-Scope
Does not cover deletion or rename.
`, target, planHash, phase, target)
}

func TestValidateAcceptsWellFormedArtifact(t *testing.T) {
	raw := validIntent("src/a.txt", "PHASE_1")
	result, err := Validate(raw, "src/a.txt", planHash, "PHASE_1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateDetectsPathMismatch(t *testing.T) {
	raw := validIntent("src/a.txt", "PHASE_1")
	_, err := Validate(raw, "src/b.txt", planHash, "PHASE_1")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeIntentPathConsistency, env.ErrorCode)
}

func TestValidateDetectsAuthorityDrift(t *testing.T) {
	raw := validIntent("src/a.txt", "PHASE_1")
	_, err := Validate(raw, "src/a.txt", planHash, "PHASE_2")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeIntentAuthorityDrift, env.ErrorCode)
}

func TestValidateDetectsMissingSection(t *testing.T) {
	raw := "# Intent: src/a.txt\n\n## Purpose\nx\n"
	_, err := Validate(raw, "src/a.txt", planHash, "PHASE_1")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeIntentSchemaInvalid, env.ErrorCode)
}

func TestValidateDetectsForbiddenCodeFence(t *testing.T) {
	raw := validIntent("src/a.txt", "PHASE_1") + "\n```go\nfunc f() {}\n```\n"
	_, err := Validate(raw, "src/a.txt", planHash, "PHASE_1")
	require.Error(t, err)
}

func TestValidateDetectsWorkMarker(t *testing.T) {
	base := validIntent("src/a.txt", "PHASE_1")
	raw := base[:len(base)-1] + " TODO revisit\n"
	_, err := Validate(raw, "src/a.txt", planHash, "PHASE_1")
	require.Error(t, err)
}

func TestIsExemptForReportsDirectory(t *testing.T) {
	assert.True(t, IsExempt("docs/reports/replay_2026-07-29.md"))
	assert.False(t, IsExempt("src/a.txt"))
}

func TestHashIsDeterministic(t *testing.T) {
	raw := validIntent("src/a.txt", "PHASE_1")
	assert.Equal(t, Hash(raw), Hash(raw))
	assert.NotEqual(t, Hash(raw), Hash(raw+"x"))
}
