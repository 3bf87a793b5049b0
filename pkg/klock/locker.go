// Package klock serializes concurrent access to the audit ledger with a
// bounded wait. The default backend is a directory-based mutex (mkdir is atomic
// on POSIX filesystems). An optional Redis-backed implementation
// satisfies the same Locker interface for multi-process deployments, per
// the kernel contract allowance for an external lock service.
package klock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// RetryInterval and MaxRetries bound the wait: 50ms x 500 retries gives
// a 25s ceiling.
const (
	RetryInterval = 50 * time.Millisecond
	MaxRetries    = 500
)

// Locker serializes access to a named resource with a bounded wait.
// Implementations must be safe for concurrent use by multiple goroutines
// within one process, and (for distributed backends) across processes.
type Locker interface {
	// Acquire blocks (up to the bounded ceiling) until the lock is held,
	// or returns an error. The returned release func must always be
	// called, even after the protected section throws.
	Acquire(ctx context.Context) (release func(), err error)
}

// DirLock is the default Locker: an exclusive directory created with
// os.Mkdir, which is atomic on every POSIX filesystem, so no external
// lock service is needed on a single host.
type DirLock struct {
	path string
}

// NewDirLock returns a DirLock guarding the given lock directory path.
func NewDirLock(path string) *DirLock {
	return &DirLock{path: path}
}

// Acquire implements Locker.
func (l *DirLock) Acquire(ctx context.Context) (func(), error) {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err := os.Mkdir(l.path, 0o700)
		if err == nil {
			return func() { _ = os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, kerr.New(kerr.CodeAuditLockFailed, "cannot create lock directory", kerr.WithCause(err))
		}

		select {
		case <-ctx.Done():
			return nil, kerr.New(kerr.CodeAuditLockFailed, "lock acquisition cancelled", kerr.WithCause(ctx.Err()))
		case <-time.After(RetryInterval):
		}
	}
	return nil, kerr.New(kerr.CodeAuditLockFailed, fmt.Sprintf("timed out acquiring lock after %d attempts", MaxRetries))
}
