package access

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeAccessLogStore struct {
	attempts  []*AccessAttempt
	failNext  bool
	appendErr error
}

func (s *fakeAccessLogStore) AppendAttempt(ctx context.Context, a *AccessAttempt) error {
	if s.failNext {
		s.failNext = false
		if s.appendErr == nil {
			s.appendErr = fmt.Errorf("disk full")
		}
		return s.appendErr
	}
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *fakeAccessLogStore) RecentAttempts(ctx context.Context, limit int) ([]*AccessAttempt, error) {
	out := make([]*AccessAttempt, 0, limit)
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.attempts[i])
	}
	return out, nil
}

func (s *fakeAccessLogStore) TrimAttempts(ctx context.Context, keep int) error {
	if len(s.attempts) > keep {
		s.attempts = s.attempts[len(s.attempts)-keep:]
	}
	return nil
}

func attemptAt(id, userID string, ts time.Time) *AccessAttempt {
	return &AccessAttempt{ID: id, UserID: userID, Resource: ResourceTickets, Action: ActionRead, Timestamp: ts}
}

func TestAccessLogEvictsOldestAtCap(t *testing.T) {
	ctx := context.Background()
	store := &fakeAccessLogStore{}
	log := NewAccessLog(store, 3)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := attemptAt(fmt.Sprintf("a%d", i), "u1", base.Add(time.Duration(i)*time.Minute))
		if err := log.Record(ctx, a); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	if log.Len() != 3 {
		t.Fatalf("window should hold cap entries, got %d", log.Len())
	}
	recent := log.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected 3 retained attempts, got %d", len(recent))
	}
	if recent[0].ID != "a4" || recent[2].ID != "a2" {
		t.Fatalf("eviction should drop the oldest entries: got %s..%s", recent[0].ID, recent[2].ID)
	}
	// the durable store is trimmed to the same bound
	if len(store.attempts) != 3 || store.attempts[0].ID != "a2" {
		t.Fatalf("durable store should hold the same window, got %d entries", len(store.attempts))
	}
}

func TestAccessLogRecentByUser(t *testing.T) {
	ctx := context.Background()
	log := NewAccessLog(&fakeAccessLogStore{}, 10)
	base := time.Now()

	_ = log.Record(ctx, attemptAt("a1", "alice", base))
	_ = log.Record(ctx, attemptAt("a2", "bob", base))
	_ = log.Record(ctx, attemptAt("a3", "alice", base))

	got := log.RecentByUser("alice", 10)
	if len(got) != 2 || got[0].ID != "a3" || got[1].ID != "a1" {
		t.Fatalf("expected alice's attempts newest first, got %+v", got)
	}
	if n := len(log.RecentByUser("carol", 10)); n != 0 {
		t.Fatalf("unknown user should have no attempts, got %d", n)
	}
}

func TestAccessLogRange(t *testing.T) {
	ctx := context.Background()
	log := NewAccessLog(&fakeAccessLogStore{}, 10)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_ = log.Record(ctx, attemptAt(fmt.Sprintf("a%d", i), "u1", base.Add(time.Duration(i)*time.Hour)))
	}

	got := log.Range(base.Add(1*time.Hour), base.Add(2*time.Hour))
	if len(got) != 2 || got[0].ID != "a2" || got[1].ID != "a1" {
		t.Fatalf("range should be inclusive and newest first, got %+v", got)
	}

	all := log.Range(time.Time{}, time.Time{})
	if len(all) != 4 {
		t.Fatalf("zero bounds are open, expected 4, got %d", len(all))
	}
}

func TestAccessLogLoadRestoresWindow(t *testing.T) {
	ctx := context.Background()
	store := &fakeAccessLogStore{}
	log := NewAccessLog(store, 5)
	base := time.Now()
	for i := 0; i < 7; i++ {
		_ = log.Record(ctx, attemptAt(fmt.Sprintf("a%d", i), "u1", base))
	}

	// a fresh log over the same store models a process restart
	restored := NewAccessLog(store, 5)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Len() != 5 {
		t.Fatalf("restart should restore the retained window, got %d", restored.Len())
	}
	recent := restored.Recent(1)
	if len(recent) != 1 || recent[0].ID != "a6" {
		t.Fatalf("restored window should keep ordering, newest is %v", recent)
	}
}

func TestAccessLogRecordKeepsWindowOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &fakeAccessLogStore{failNext: true}
	log := NewAccessLog(store, 5)

	err := log.Record(ctx, attemptAt("a1", "u1", time.Now()))
	if err == nil {
		t.Fatalf("durable append failure must surface")
	}
	if log.Len() != 1 {
		t.Fatalf("ring append must survive the store failure, got %d", log.Len())
	}
}

func TestConcurrentRecordsKeepStoreOrderAligned(t *testing.T) {
	ctx := context.Background()
	store := &fakeAccessLogStore{}
	log := NewAccessLog(store, 64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				id := fmt.Sprintf("g%d-a%d", g, i)
				if err := log.Record(ctx, attemptAt(id, "u1", time.Now())); err != nil {
					t.Errorf("record %s: %v", id, err)
				}
			}
		}(g)
	}
	wg.Wait()

	window := log.Recent(0)
	if len(window) != 64 || len(store.attempts) != 64 {
		t.Fatalf("expected 64 attempts in window and store, got %d/%d", len(window), len(store.attempts))
	}
	// window is newest first, the store holds insertion order
	for i, a := range store.attempts {
		if window[len(window)-1-i].ID != a.ID {
			t.Fatalf("store order diverged from window order at %d: %s vs %s", i, a.ID, window[len(window)-1-i].ID)
		}
	}
}
