// Package ktrust implements the operator trust boundary: identity
// binding, structured risk acknowledgement, two-step confirmation,
// approval-language sanitization, and fatigue guards for every human
// decision over a high-risk operation (plan approval, recovery,
// proposal approval).
package ktrust

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// OperatorClaims extends the registered JWT claims with the two fields
// the trust boundary binds: who, and under what role.
type OperatorClaims struct {
	jwt.RegisteredClaims
	OperatorID   string `json:"operator_id"`
	OperatorRole string `json:"operator_role"`
}

// AuthContext is the verified authentication context bound at session
// start. It is opaque to callers beyond its token string and claims.
type AuthContext struct {
	Token  string
	Claims OperatorClaims
}

// RoleOwner is the operator role required for kill-switch recovery.
// Unlike the session roles, operator roles are free-form strings carried
// by the verified identity; only this one value is special-cased.
const RoleOwner = "OWNER"

// Operator is the immutable record bound once per session.
type Operator struct {
	OperatorID   string
	OperatorRole string
	Auth         AuthContext
	BoundAt      time.Time
}

// KeyFunc resolves the verification key for a token header.
type KeyFunc = jwt.Keyfunc

// Binder binds exactly one Operator for the life of a session and
// refuses any further bind attempt, matching ksession's single-bind gate
// idiom but for operator identity rather than role/workspace.
type Binder struct {
	keyFunc KeyFunc
	bound   *Operator
}

// NewBinder constructs a Binder that verifies bearer tokens with keyFunc.
func NewBinder(keyFunc KeyFunc) *Binder {
	return &Binder{keyFunc: keyFunc}
}

// Bind verifies token and binds the resulting operator identity. A
// second call on the same Binder, regardless of token, is rejected as a
// rebind attempt — the trust boundary does not support mid-session
// identity changes.
func (b *Binder) Bind(_ context.Context, token string) (*Operator, error) {
	if b.bound != nil {
		return nil, kerr.New(kerr.CodeOperatorRebindRejected, "operator identity is already bound for this session")
	}

	claims := &OperatorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, b.keyFunc)
	if err != nil {
		return nil, kerr.New(kerr.CodeUnauthorizedAction, "operator token failed verification", kerr.WithCause(err))
	}
	if !parsed.Valid {
		return nil, kerr.New(kerr.CodeUnauthorizedAction, "operator token is not valid")
	}
	if strings.TrimSpace(claims.OperatorID) == "" || strings.TrimSpace(claims.OperatorRole) == "" {
		return nil, kerr.New(kerr.CodeUnauthorizedAction, "operator token is missing operator_id or operator_role")
	}

	op := &Operator{
		OperatorID:   claims.OperatorID,
		OperatorRole: claims.OperatorRole,
		Auth:         AuthContext{Token: token, Claims: *claims},
		BoundAt:      time.Now().UTC(),
	}
	b.bound = op
	return op, nil
}

// Bound returns the currently bound operator, or nil if none has bound yet.
func (b *Binder) Bound() *Operator {
	return b.bound
}
