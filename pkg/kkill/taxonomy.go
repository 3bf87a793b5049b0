// Package kkill implements the kill-switch / safe-halt state machine:
// a persisted, refuse-to-serve engagement record and a two-step human
// recovery gate over a single workspace-wide halt state.
package kkill

// FailureID is a stable identifier drawn from the closed failure
// taxonomy.
type FailureID string

// Critical failures engage the kill-switch (HALT).
const (
	FStartup       FailureID = "F-STARTUP"
	FPolicy        FailureID = "F-POLICY"
	FAudit         FailureID = "F-AUDIT"
	FAuditWrite    FailureID = "F-AUDIT-WRITE"
	FDeterminism   FailureID = "F-DETERMINISM"
	FAuthorityRole FailureID = "F-AUTHORITY-ROLE"
	FAuthorityPlan FailureID = "F-AUTHORITY-PLAN"
	FIntent        FailureID = "F-INTENT"
	FPlanHash      FailureID = "F-PLAN-HASH"
	FSecurity      FailureID = "F-SECURITY"
	FHumanAbuse    FailureID = "F-HUMAN-ABUSE"
)

// High-severity failures degrade service but do not halt it.
const (
	FHumanFatigue FailureID = "F-HUMAN-FATIGUE"
	FEnvFS        FailureID = "F-ENV-FS"
	FEnvResource  FailureID = "F-ENV-RESOURCE"
)

// Severity is the coarse classification of a FailureID.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityUnknown  Severity = "UNKNOWN"
)

var criticalSet = map[FailureID]bool{
	FStartup: true, FPolicy: true, FAudit: true, FAuditWrite: true,
	FDeterminism: true, FAuthorityRole: true, FAuthorityPlan: true,
	FIntent: true, FPlanHash: true, FSecurity: true, FHumanAbuse: true,
}

var highSet = map[FailureID]bool{
	FHumanFatigue: true, FEnvFS: true, FEnvResource: true,
}

// SeverityOf classifies id against the closed taxonomy.
func SeverityOf(id FailureID) Severity {
	if criticalSet[id] {
		return SeverityCritical
	}
	if highSet[id] {
		return SeverityHigh
	}
	return SeverityUnknown
}

// IsCritical reports whether id must trigger engagement.
func IsCritical(id FailureID) bool {
	return SeverityOf(id) == SeverityCritical
}
