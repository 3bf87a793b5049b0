package ktrust

import (
	"context"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// DecisionTool is the literal tool marker used for every trust-boundary
// audit entry.
const DecisionTool = "HUMAN_FACTOR_DECISION"

// Decision is the fully-resolved outcome of one trust-boundary ceremony,
// ready to be folded into an audit entry.
type Decision struct {
	Operator        Operator
	Acknowledgement RiskAcknowledgement
	Outcome         string // "CONFIRMED" or "REJECTED"
	Reason          string
	DecidedAt       time.Time
}

// AuditEntry builds the kaudit.WriteRequest for this decision. The
// caller's ledger.Append does the actual hash-chained append; ktrust
// never touches the ledger file directly, matching the rest of the
// kernel's convention of routing every write through kaudit.Ledger.
func (d Decision) AuditEntry(sessionID, workspaceRoot string) kaudit.WriteRequest {
	result := kaudit.ResultOK
	errorCode := ""
	if d.Outcome != "CONFIRMED" {
		result = kaudit.ResultError
		errorCode = d.Reason
	}

	return kaudit.WriteRequest{
		SessionID:     sessionID,
		Role:          d.Operator.OperatorRole,
		WorkspaceRoot: workspaceRoot,
		Tool:          DecisionTool,
		Result:        result,
		ErrorCode:     errorCode,
		Notes:         d.Reason,
		Args: map[string]interface{}{
			"operator_id":  d.Operator.OperatorID,
			"operation_id": d.Acknowledgement.OperationID,
			"risk_level":   string(d.Acknowledgement.RiskLevel),
			"blast_radius": d.Acknowledgement.BlastRadius,
			"reversible":   d.Acknowledgement.Reversible,
			"consequences": d.Acknowledgement.Consequences,
			"outcome":      d.Outcome,
		},
	}
}

// Record appends d to ledger as a HUMAN_FACTOR_DECISION entry.
func Record(ctx context.Context, ledger *kaudit.Ledger, d Decision, sessionID, workspaceRoot string) (*kaudit.Entry, error) {
	return ledger.Append(ctx, d.AuditEntry(sessionID, workspaceRoot))
}
