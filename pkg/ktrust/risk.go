package ktrust

// RiskLevel is the closed four-value classification every risk
// acknowledgement must carry.
type RiskLevel string

const (
	RiskLow          RiskLevel = "LOW"
	RiskMedium       RiskLevel = "MEDIUM"
	RiskHigh         RiskLevel = "HIGH"
	RiskIrreversible RiskLevel = "IRREVERSIBLE"
)

var validRiskLevels = map[RiskLevel]bool{
	RiskLow: true, RiskMedium: true, RiskHigh: true, RiskIrreversible: true,
}

// Valid reports whether r is one of the four known levels.
func (r RiskLevel) Valid() bool {
	return validRiskLevels[r]
}

// RiskAcknowledgement is a structured, machine-generated description of
// what a high-risk operation will do — never free text a human typed.
// Consequences, BlastRadius and RiskLevel must all be produced by the
// calling component from the operation it is about to perform.
type RiskAcknowledgement struct {
	OperationID  string    `json:"operation_id"`
	Consequences []string  `json:"consequences"`
	RiskLevel    RiskLevel `json:"risk_level"`
	BlastRadius  []string  `json:"blast_radius"`
	Reversible   bool      `json:"reversible"`
}

// stringSliceEqual reports whether two slices are byte-identical element
// by element, in order — the two-step confirmation ceremony requires the
// re-submission to match the original exactly.
func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether ack is byte-identical to other in every field a
// re-submission must reproduce.
func (ack RiskAcknowledgement) Equal(other RiskAcknowledgement) bool {
	return ack.OperationID == other.OperationID &&
		ack.RiskLevel == other.RiskLevel &&
		ack.Reversible == other.Reversible &&
		stringSliceEqual(ack.Consequences, other.Consequences) &&
		stringSliceEqual(ack.BlastRadius, other.BlastRadius)
}
