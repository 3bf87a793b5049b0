// Package kattest implements the external attestation bundle
// generator: a deterministic, canonical-JSON summary of a workspace's
// governance posture, HMAC-SHA256-signed so a third party can verify it
// was produced by this kernel instance without trusting the transport
// it arrived over.
package kattest

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// SchemaVersion is the current bundle schema's semver identifier.
const SchemaVersion = "1.0.0"

// TimeWindow bounds the ledger span a bundle summarizes.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AuditMetrics summarizes ledger activity within the bundle's window.
type AuditMetrics struct {
	TotalEntries  int `json:"total_entries"`
	OKEntries     int `json:"ok_entries"`
	ErrorEntries  int `json:"error_entries"`
	BufferedCount int `json:"buffered_count"`
}

// PolicyEnforcement summarizes write-time policy engine outcomes.
type PolicyEnforcement struct {
	ChecksPerformed int `json:"checks_performed"`
	Denied          int `json:"denied"`
}

// IntentCoverage summarizes how many mutations carried a valid intent
// artifact.
type IntentCoverage struct {
	MutationsTotal      int `json:"mutations_total"`
	MutationsWithIntent int `json:"mutations_with_intent"`
}

// Bundle is the full, signable attestation record.
type Bundle struct {
	BundleID          string             `json:"bundle_id"`
	SchemaVersion     string             `json:"schema_version"`
	WorkspaceRootHash string             `json:"workspace_root_hash"`
	TimeWindow        TimeWindow         `json:"time_window"`
	AuditLogRootHash  string             `json:"audit_log_root_hash"`
	PlanHashes        []string           `json:"plan_hashes"`
	AuditMetrics      AuditMetrics       `json:"audit_metrics"`
	PolicyEnforcement PolicyEnforcement  `json:"policy_enforcement"`
	IntentCoverage    IntentCoverage     `json:"intent_coverage"`
	ReplayVerdict     string             `json:"replay_verdict"`
	MaturityScores    map[string]float64 `json:"maturity_scores"`
	VerifierChecksums map[string]string  `json:"verifier_checksums"`
	GeneratedTS       time.Time          `json:"generated_timestamp"`
	Signature         string             `json:"signature,omitempty"`
}

// CheckSchemaCompatible validates a bundle's schema_version is parseable
// semver no newer than the running verifier's SchemaVersion.
func CheckSchemaCompatible(version string) error {
	if version == "" {
		return kerr.New(kerr.CodeInvalidInputFormat, "bundle carries no schema_version")
	}
	got, err := semver.NewVersion(version)
	if err != nil {
		return kerr.New(kerr.CodeInvalidInputFormat, "bundle schema_version is not valid semver", kerr.WithCause(err))
	}
	running, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return kerr.New(kerr.CodeInternalError, "running schema version is not valid semver", kerr.WithCause(err))
	}
	if got.GreaterThan(running) {
		return kerr.New(kerr.CodeInvalidInputValue, "bundle schema_version is newer than this verifier supports")
	}
	return nil
}
