package ktrust

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// Fatigue guard limits: at most 10 approvals per session,
// at most 20 per rolling hour, and a mandatory pause of at least 60s
// after every 5 consecutive approvals.
const (
	MaxApprovalsPerSession = 10
	MaxApprovalsPerHour    = 20
	ConsecutiveBatchSize   = 5
	ConsecutivePause       = 60 * time.Second
)

// FatigueGuard tracks approval throughput for one session. The hourly
// ceiling is enforced with a token-bucket limiter so a burst of
// approvals cannot outrun the rolling-hour budget.
type FatigueGuard struct {
	mu sync.Mutex

	hourly *rate.Limiter

	sessionCount     int
	consecutive      int
	lastApprovalAt   time.Time
	havePrevApproval bool

	clock func() time.Time
}

// NewFatigueGuard returns a guard enforcing the fixed fatigue limits.
func NewFatigueGuard() *FatigueGuard {
	return &FatigueGuard{
		hourly: rate.NewLimiter(rate.Every(time.Hour/time.Duration(MaxApprovalsPerHour)), MaxApprovalsPerHour),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing. The
// underlying rate.Limiter always uses the real wall clock; tests that
// need to exercise the hourly ceiling should construct enough calls
// within a genuine short window rather than relying on WithClock for it.
func (g *FatigueGuard) WithClock(clock func() time.Time) *FatigueGuard {
	g.clock = clock
	return g
}

// CheckAndRecord verifies the next approval is permitted under every
// fatigue rule, and if so records it. Callers must invoke this exactly
// once per approval decision, immediately before acting on it.
func (g *FatigueGuard) CheckAndRecord() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sessionCount >= MaxApprovalsPerSession {
		return kerr.New(kerr.CodeApprovalFatigueLimitReached, "session approval limit reached")
	}
	if g.consecutive >= ConsecutiveBatchSize {
		now := g.clock().UTC()
		if g.havePrevApproval && now.Sub(g.lastApprovalAt) < ConsecutivePause {
			return kerr.New(kerr.CodeApprovalFatigueLimitReached, "mandatory pause required after 5 consecutive approvals")
		}
		g.consecutive = 0
	}
	// The hourly bucket is consulted last: Allow consumes a token, and a
	// call refused by the session or pause checks above must not burn
	// hourly budget for an approval that was never recorded.
	if !g.hourly.Allow() {
		return kerr.New(kerr.CodeApprovalFatigueLimitReached, "hourly approval limit reached")
	}

	g.sessionCount++
	g.consecutive++
	g.lastApprovalAt = g.clock().UTC()
	g.havePrevApproval = true
	return nil
}

// SessionCount reports how many approvals this guard has recorded so far.
func (g *FatigueGuard) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionCount
}
