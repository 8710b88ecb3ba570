package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ticketops/access"
)

// MemorySubjectStore implements subject lookup in-memory for testing/demo
type MemorySubjectStore struct {
	mu       sync.RWMutex
	subjects map[string]*access.Subject
}

func NewMemorySubjectStore() *MemorySubjectStore {
	return &MemorySubjectStore{subjects: make(map[string]*access.Subject)}
}

func (s *MemorySubjectStore) PutSubject(sub *access.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[sub.ID] = sub
}

func (s *MemorySubjectStore) GetSubject(ctx context.Context, userID string) (*access.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[userID]
	if !ok {
		return nil, fmt.Errorf("subject %s: %w", userID, access.ErrNotFound)
	}
	return sub, nil
}

func (s *MemorySubjectStore) LegacyRoleName(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[userID]
	if !ok {
		return "", fmt.Errorf("subject %s: %w", userID, access.ErrNotFound)
	}
	return sub.LegacyRole, nil
}

// MemoryRoleStore implements in-memory role persistence
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*access.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*access.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; exists {
		return fmt.Errorf("role %s already exists", r.ID)
	}
	s.roles[r.ID] = r
	return nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; !exists {
		return fmt.Errorf("role %s: %w", r.ID, access.ErrNotFound)
	}
	s.roles[r.ID] = r
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, id string) (*access.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, access.ErrNotFound)
	}
	return r, nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context) ([]*access.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

// MemoryPermissionStore implements in-memory custom permission persistence
type MemoryPermissionStore struct {
	mu    sync.RWMutex
	perms map[string]*access.Permission
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{perms: make(map[string]*access.Permission)}
}

func (s *MemoryPermissionStore) CreatePermission(ctx context.Context, p *access.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.perms[p.ID]; exists {
		return fmt.Errorf("permission %s already exists", p.ID)
	}
	s.perms[p.ID] = p
	return nil
}

func (s *MemoryPermissionStore) GetPermission(ctx context.Context, id string) (*access.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.perms[id]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", id, access.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryPermissionStore) ListPermissions(ctx context.Context) ([]*access.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	return out, nil
}

// MemoryAssignmentStore implements in-memory assignment rows. Revoke flips
// IsActive; rows are never removed.
type MemoryAssignmentStore struct {
	mu   sync.RWMutex
	rows map[string][]*access.UserRoleAssignment // keyed by user
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{rows: make(map[string][]*access.UserRoleAssignment)}
}

func (s *MemoryAssignmentStore) Assign(ctx context.Context, a *access.UserRoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows[a.UserID] {
		if row.RoleID == a.RoleID {
			// re-activation path: refresh the existing row in place
			row.IsActive = a.IsActive
			row.AssignedBy = a.AssignedBy
			row.AssignedAt = a.AssignedAt
			row.ExpiresAt = a.ExpiresAt
			return nil
		}
	}
	cop := *a
	s.rows[a.UserID] = append(s.rows[a.UserID], &cop)
	return nil
}

func (s *MemoryAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows[userID] {
		if row.RoleID == roleID {
			row.IsActive = false
			return nil
		}
	}
	return fmt.Errorf("assignment %s/%s: %w", userID, roleID, access.ErrNotFound)
}

func (s *MemoryAssignmentStore) ListAssignments(ctx context.Context, userID string) ([]*access.UserRoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.rows[userID]
	out := make([]*access.UserRoleAssignment, 0, len(rows))
	for _, row := range rows {
		cop := *row
		out = append(out, &cop)
	}
	return out, nil
}

// MemoryAccessLogStore keeps access attempts in memory, newest appended last
type MemoryAccessLogStore struct {
	mu       sync.RWMutex
	attempts []*access.AccessAttempt
}

func NewMemoryAccessLogStore() *MemoryAccessLogStore {
	return &MemoryAccessLogStore{}
}

func (s *MemoryAccessLogStore) AppendAttempt(ctx context.Context, a *access.AccessAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *MemoryAccessLogStore) RecentAttempts(ctx context.Context, limit int) ([]*access.AccessAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.attempts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*access.AccessAttempt, 0, n)
	for i := len(s.attempts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.attempts[i])
	}
	return out, nil
}

func (s *MemoryAccessLogStore) TrimAttempts(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep >= 0 && len(s.attempts) > keep {
		s.attempts = append(s.attempts[:0:0], s.attempts[len(s.attempts)-keep:]...)
	}
	return nil
}

func (s *MemoryAccessLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// MemoryAuditLogStore keeps mutation audit entries in memory
type MemoryAuditLogStore struct {
	mu      sync.RWMutex
	entries []*access.MutationAuditEntry
}

func NewMemoryAuditLogStore() *MemoryAuditLogStore {
	return &MemoryAuditLogStore{}
}

func (s *MemoryAuditLogStore) AppendEntry(ctx context.Context, e *access.MutationAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryAuditLogStore) RecentEntries(ctx context.Context, limit int) ([]*access.MutationAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*access.MutationAuditEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *MemoryAuditLogStore) TrimEntries(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep >= 0 && len(s.entries) > keep {
		s.entries = append(s.entries[:0:0], s.entries[len(s.entries)-keep:]...)
	}
	return nil
}

func (s *MemoryAuditLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
