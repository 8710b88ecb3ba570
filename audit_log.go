package access

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MutationAuditLog is the bounded, append-only log of access-model mutations
// and security-relevant events. Same retention discipline as AccessLog:
// in-memory window of at most cap entries with durable write-through.
type MutationAuditLog struct {
	mu      sync.Mutex
	store   AuditLogStore
	cap     int
	entries []*MutationAuditEntry // oldest first
}

func NewMutationAuditLog(store AuditLogStore, capacity int) *MutationAuditLog {
	if capacity <= 0 {
		capacity = DefaultLogCap
	}
	return &MutationAuditLog{store: store, cap: capacity}
}

// Load fills the in-memory window from the durable store after a restart
func (l *MutationAuditLog) Load(ctx context.Context) error {
	recent, err := l.store.RecentEntries(ctx, l.cap)
	if err != nil {
		return fmt.Errorf("load mutation audit log: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]*MutationAuditEntry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		l.entries = append(l.entries, recent[i])
	}
	return nil
}

// Record appends one entry; a durable write failure is returned without
// rolling back the ring append. The lock is held across the durable write
// so the store sees appends in the same order as the window.
func (l *MutationAuditLog) Record(ctx context.Context, e *MutationAuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if excess := len(l.entries) - l.cap; excess > 0 {
		l.entries = append(l.entries[:0:0], l.entries[excess:]...)
	}

	if err := l.store.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("persist audit entry %s: %w", e.ID, err)
	}
	if err := l.store.TrimEntries(ctx, l.cap); err != nil {
		return fmt.Errorf("trim mutation audit log: %w", err)
	}
	return nil
}

// Len returns the current window size
func (l *MutationAuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Recent returns up to n entries, most recent first
func (l *MutationAuditLog) Recent(n int) []*MutationAuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(*MutationAuditEntry) bool { return true })
}

// RecentByPerformer returns up to n entries performed by one actor
func (l *MutationAuditLog) RecentByPerformer(performedBy string, n int) []*MutationAuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(e *MutationAuditEntry) bool { return e.PerformedBy == performedBy })
}

// ByEntity returns entries for an entity type, optionally narrowed to one
// entity id, most recent first.
func (l *MutationAuditLog) ByEntity(entityType EntityType, entityID string, n int) []*MutationAuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(e *MutationAuditEntry) bool {
		if e.EntityType != entityType {
			return false
		}
		return entityID == "" || e.EntityID == entityID
	})
}

// Range returns entries within [from, to], most recent first
func (l *MutationAuditLog) Range(from, to time.Time) []*MutationAuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(0, func(e *MutationAuditEntry) bool {
		return inRange(e.Timestamp, from, to)
	})
}

// SecurityEvents returns the security-only view, most recent first
func (l *MutationAuditLog) SecurityEvents(n int) []*MutationAuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterLocked(n, func(e *MutationAuditEntry) bool { return e.IsSecurityEvent() })
}

func (l *MutationAuditLog) filterLocked(n int, keep func(*MutationAuditEntry) bool) []*MutationAuditEntry {
	out := make([]*MutationAuditEntry, 0)
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

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// ============================================================================
// STATISTICS & EXPORT
// ============================================================================

// KeyCount is one (key, count) pair in the statistics rankings
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AuditStatistics summarizes the retained audit window
type AuditStatistics struct {
	TotalEntries       int        `json:"total_entries"`
	EntriesLast24h     int        `json:"entries_last_24h"`
	TopPerformers      []KeyCount `json:"top_performers"`
	TopActions         []KeyCount `json:"top_actions"`
	SecurityViolations int        `json:"security_violations"`
}

// Statistics computes counts over the retained window. Rankings are sorted
// by count descending, key ascending on ties, and capped at topN.
func (l *MutationAuditLog) Statistics(now time.Time, topN int) AuditStatistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := AuditStatistics{TotalEntries: len(l.entries)}
	cutoff := now.Add(-24 * time.Hour)
	performers := make(map[string]int)
	actions := make(map[string]int)
	for _, e := range l.entries {
		if e.Timestamp.After(cutoff) {
			stats.EntriesLast24h++
		}
		performers[e.PerformedBy]++
		actions[string(e.Action)]++
		if e.IsSecurityEvent() {
			stats.SecurityViolations++
		}
	}
	stats.TopPerformers = rankCounts(performers, topN)
	stats.TopActions = rankCounts(actions, topN)
	return stats
}

func rankCounts(counts map[string]int, topN int) []KeyCount {
	ranked := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, KeyCount{Key: k, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// AuditExport is the self-describing offline-retention document
type AuditExport struct {
	ExportedAt time.Time             `json:"exported_at"`
	Total      int                   `json:"total"`
	Entries    []*MutationAuditEntry `json:"entries"`
}

// Export collects a date-bounded (or, with zero bounds, full) slice of the
// retained window. Entries are ordered oldest first for offline replay.
func (l *MutationAuditLog) Export(now time.Time, from, to time.Time) *AuditExport {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]*MutationAuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if inRange(e.Timestamp, from, to) {
			entries = append(entries, e)
		}
	}
	return &AuditExport{ExportedAt: now, Total: len(entries), Entries: entries}
}

// MarshalDocument serializes the export for offline retention
func (x *AuditExport) MarshalDocument() ([]byte, error) {
	return json.MarshalIndent(x, "", "  ")
}
