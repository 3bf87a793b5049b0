// Package kmaturity implements the six-dimension maturity scoring
// engine: a pure function of evidence already produced by the rest of
// the kernel (audit metrics, policy statistics, intent coverage, plan
// registry state, replay verdicts, remediation backlog) folded into
// deterministic, capped scores whose overall value is the minimum of
// its dimensions.
package kmaturity

import (
	"fmt"
	"math"
)

// Dimension is one of the six closed scoring axes.
type Dimension string

const (
	DimReliability   Dimension = "Reliability"
	DimSecurity      Dimension = "Security"
	DimDocumentation Dimension = "Documentation"
	DimGovernance    Dimension = "Governance"
	DimIntegration   Dimension = "Integration"
	DimPerformance   Dimension = "Performance"
)

// AllDimensions lists the six scored axes in a fixed order, so rendered
// output is always deterministic.
var AllDimensions = []Dimension{
	DimReliability, DimSecurity, DimDocumentation, DimGovernance, DimIntegration, DimPerformance,
}

const (
	// Scores live on [1.0, 5.0] in 0.1 steps.
	ScoreFloor   = 1.0
	ScoreCeiling = 5.0
	// MissingEvidenceCap is the hard cap applied when a dimension's
	// required evidence was never supplied.
	MissingEvidenceCap = 2.0
)

// clampAndRound floors v to [ScoreFloor, ScoreCeiling] and rounds to the
// nearest 0.1 step, so two runs over identical evidence always produce
// the same bit-identical float64.
func clampAndRound(v float64) float64 {
	if v < ScoreFloor {
		v = ScoreFloor
	}
	if v > ScoreCeiling {
		v = ScoreCeiling
	}
	// Scale to tenths as an integer before dividing back down, so a value
	// that is already an exact multiple of 0.1 (the common case: caps and
	// full-marks scores) survives rounding bit-identical rather than
	// picking up binary floating point drift from repeated 0.1 division.
	tenths := math.Round(v * 10)
	rounded := tenths / 10
	if rounded < ScoreFloor {
		rounded = ScoreFloor
	}
	if rounded > ScoreCeiling {
		rounded = ScoreCeiling
	}
	return rounded
}

func capAt(score, ceiling float64) float64 {
	if score > ceiling {
		return ceiling
	}
	return score
}

// Gate names a hard cap that fired, so a result can explain why a
// dimension landed below what its raw evidence would otherwise imply.
type Gate struct {
	Dimension Dimension `json:"dimension"`
	Reason    string    `json:"reason"`
	CappedAt  float64   `json:"capped_at"`
}

func (g Gate) String() string {
	return fmt.Sprintf("%s capped at %.1f: %s", g.Dimension, g.CappedAt, g.Reason)
}
