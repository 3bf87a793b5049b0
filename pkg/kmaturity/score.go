package kmaturity

import (
	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
)

// Result is the full, deterministic scoring output.
type Result struct {
	Scores     map[Dimension]float64 `json:"scores"`
	Overall    float64               `json:"overall"`
	Gates      []Gate                `json:"gates"`
	Level5     bool                  `json:"level5_claimable"`
	ResultHash string                `json:"result_hash"`
}

// Score computes all six dimensions from ev, the overall score, and a
// deterministic result_hash over the scores themselves.
func Score(ev Evidence) (*Result, error) {
	scores := map[Dimension]float64{}
	var gates []Gate

	scores[DimReliability], gates = scoreReliability(ev, gates)
	scores[DimSecurity], gates = scoreSecurity(ev, gates)
	scores[DimDocumentation], gates = scoreDocumentation(ev, gates)
	scores[DimGovernance], gates = scoreGovernance(ev, gates)
	scores[DimIntegration], gates = scoreIntegration(ev, gates)
	scores[DimPerformance], gates = scorePerformance(ev, gates)

	overall := ScoreCeiling
	for _, d := range AllDimensions {
		if scores[d] < overall {
			overall = scores[d]
		}
	}

	level5 := overall >= ScoreCeiling && len(gates) == 0

	hash, err := resultHash(scores)
	if err != nil {
		return nil, err
	}

	return &Result{Scores: scores, Overall: overall, Gates: gates, Level5: level5, ResultHash: hash}, nil
}

func scoreReliability(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Audit == nil {
		return MissingEvidenceCap, gates
	}
	score := ScoreCeiling
	if ev.Audit.TotalEntries == 0 {
		score = MissingEvidenceCap
	} else {
		score -= ev.Audit.BufferedRatio * 2.0
	}
	if !ev.Audit.ChainIntact {
		gates = append(gates, Gate{DimReliability, "hash-chain break detected", 3.0})
		score = capAt(score, 3.0)
	}
	return clampAndRound(score), gates
}

func scoreSecurity(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Policy == nil {
		return MissingEvidenceCap, gates
	}
	score := ScoreCeiling
	if ev.Policy.ChecksPerformed > 0 {
		denialRatio := float64(ev.Policy.Denied) / float64(ev.Policy.ChecksPerformed)
		score -= denialRatio * 1.5
	}
	if ev.Policy.AnyBypassDetected {
		gates = append(gates, Gate{DimSecurity, "policy bypass detected", 3.0})
		score = capAt(score, 3.0)
	}
	return clampAndRound(score), gates
}

func scoreDocumentation(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Docs == nil || ev.Docs.RequiredDocsTotal == 0 {
		return MissingEvidenceCap, gates
	}
	coverage := float64(ev.Docs.RequiredDocsPresent) / float64(ev.Docs.RequiredDocsTotal)
	return clampAndRound(ScoreFloor + coverage*(ScoreCeiling-ScoreFloor)), gates
}

func scoreGovernance(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Plans == nil {
		return MissingEvidenceCap, gates
	}
	score := ScoreCeiling
	if ev.Plans.TotalPlans > 0 {
		lintRatio := float64(ev.Plans.LintCleanPlans) / float64(ev.Plans.TotalPlans)
		score -= (1 - lintRatio) * 1.5
	}
	if ev.Plans.ExecutionsWithoutApproval > 0 {
		gates = append(gates, Gate{DimGovernance, "execution occurred without an approved plan", 2.0})
		score = capAt(score, 2.0)
	}
	return clampAndRound(score), gates
}

func scoreIntegration(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Integration == nil {
		return MissingEvidenceCap, gates
	}
	score := ScoreCeiling
	total := ev.Integration.ManualStepsRequired + ev.Integration.AutomatedSteps
	if total > 0 {
		manualRatio := float64(ev.Integration.ManualStepsRequired) / float64(total)
		score -= manualRatio * 2.0
	}
	if ev.Integration.ManualStepsRequired > 0 {
		gates = append(gates, Gate{DimIntegration, "manual integration steps required", 4.0})
		score = capAt(score, 4.0)
	}
	return clampAndRound(score), gates
}

func scorePerformance(ev Evidence, gates []Gate) (float64, []Gate) {
	if ev.Replay == nil {
		return MissingEvidenceCap, gates
	}
	score := ScoreCeiling
	if ev.Replay.RunsTotal > 0 {
		passRatio := float64(ev.Replay.RunsPassed) / float64(ev.Replay.RunsTotal)
		score -= (1 - passRatio) * 2.0
	}
	if ev.Integration != nil && ev.Integration.MissingMetrics {
		gates = append(gates, Gate{DimPerformance, "required performance metrics are missing", 3.0})
		score = capAt(score, 3.0)
	}
	return clampAndRound(score), gates
}

// resultHash hashes the scores map via the same JCS canonicalization
// used by the audit ledger and attestation bundles, so determinism holds
// across every hashed artifact in the kernel the same way.
func resultHash(scores map[Dimension]float64) (string, error) {
	ordered := make(map[string]float64, len(scores))
	for d, s := range scores {
		ordered[string(d)] = s
	}
	return canonicalize.CanonicalHash(ordered)
}
