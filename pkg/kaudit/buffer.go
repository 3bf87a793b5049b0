package kaudit

import (
	"context"
	"sync"
)

// DefaultBufferCapacity bounds the pre-session buffer so a misbehaving
// caller that never initializes a session cannot grow it unbounded.
const DefaultBufferCapacity = 256

// Buffer holds WriteRequests produced before a session has locked a
// workspace root and initialized a Ledger. Entries are flushed in order, each marked
// Buffered=true, the first time a Ledger exists.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	pending  []WriteRequest
}

// NewBuffer returns an empty Buffer bounded at capacity (0 uses
// DefaultBufferCapacity).
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{capacity: capacity}
}

// Add appends req to the buffer, dropping the oldest entry if already at
// capacity so the most recent pre-session activity is always preserved.
func (b *Buffer) Add(req WriteRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) >= b.capacity {
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, req)
}

// Len reports the number of buffered, unflushed requests.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush appends every buffered request to ledger in order, marking each
// Buffered=true, then clears the buffer. It stops and returns an error on
// the first append failure, leaving the remaining (unflushed) requests in
// the buffer for a retry.
func (b *Buffer) Flush(ctx context.Context, ledger *Ledger) ([]*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var written []*Entry
	for len(b.pending) > 0 {
		req := b.pending[0]
		entry, err := ledger.AppendBuffered(ctx, req)
		if err != nil {
			return written, err
		}
		written = append(written, entry)
		b.pending = b.pending[1:]
	}
	return written, nil
}
