package access

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLogCap is the default retained-entry cap for both audit rings
const DefaultLogCap = 1000

// AccessLog is the bounded, append-only log of permission-check outcomes.
// The in-memory window holds at most cap entries, oldest first; appends are
// written through to the durable store and the store is trimmed to the same
// bound. Entries are never mutated after Record.
type AccessLog struct {
	mu      sync.Mutex
	store   AccessLogStore
	cap     int
	entries []*AccessAttempt // oldest first
}

func NewAccessLog(store AccessLogStore, capacity int) *AccessLog {
	if capacity <= 0 {
		capacity = DefaultLogCap
	}
	return &AccessLog{store: store, cap: capacity}
}

// Load fills the in-memory window from the durable store after a restart
func (l *AccessLog) Load(ctx context.Context) error {
	recent, err := l.store.RecentAttempts(ctx, l.cap)
	if err != nil {
		return fmt.Errorf("load access log: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// store returns newest first; the window keeps insertion order
	l.entries = make([]*AccessAttempt, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		l.entries = append(l.entries, recent[i])
	}
	return nil
}

// Record appends one attempt. The ring append always succeeds; a durable
// write failure is returned so the caller can surface it without changing
// the verdict the attempt describes. The lock is held across the durable
// write so the store sees appends in the same order as the window.
func (l *AccessLog) Record(ctx context.Context, a *AccessAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, a)
	if excess := len(l.entries) - l.cap; excess > 0 {
		l.entries = append(l.entries[:0:0], l.entries[excess:]...)
	}

	if err := l.store.AppendAttempt(ctx, a); err != nil {
		return fmt.Errorf("persist access attempt %s: %w", a.ID, err)
	}
	if err := l.store.TrimAttempts(ctx, l.cap); err != nil {
		return fmt.Errorf("trim access log: %w", err)
	}
	return nil
}

// Len returns the current window size
func (l *AccessLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Recent returns up to n attempts, most recent first
func (l *AccessLog) Recent(n int) []*AccessAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(*AccessAttempt) bool { return true })
}

// RecentByUser returns up to n attempts for one user, most recent first
func (l *AccessLog) RecentByUser(userID string, n int) []*AccessAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(a *AccessAttempt) bool { return a.UserID == userID })
}

// Range returns attempts within [from, to], most recent first. A zero bound
// is open.
func (l *AccessLog) Range(from, to time.Time) []*AccessAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(0, func(a *AccessAttempt) bool {
		if !from.IsZero() && a.Timestamp.Before(from) {
			return false
		}
		if !to.IsZero() && a.Timestamp.After(to) {
			return false
		}
		return true
	})
}

func (l *AccessLog) filterLocked(n int, keep func(*AccessAttempt) bool) []*AccessAttempt {
	out := make([]*AccessAttempt, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !keep(l.entries[i]) {
			continue
		}
		out = append(out, l.entries[i])
		if n > 0 && len(out) >= n {
			break
		}
	}
	return out
}
