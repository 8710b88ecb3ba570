package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLAssignmentStore persists user-role assignment rows in SQL (squealx).
// Revoke flips is_active; rows are never deleted.
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) Assign(ctx context.Context, a *access.UserRoleAssignment) error {
	q := `INSERT INTO user_role_assignments(user_id, role_id, assigned_by, assigned_at, expires_at, is_active) VALUES(:user_id, :role_id, :assigned_by, :assigned_at, :expires_at, :is_active)
ON CONFLICT(user_id, role_id) DO UPDATE SET assigned_by=:assigned_by, assigned_at=:assigned_at, expires_at=:expires_at, is_active=:is_active`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":     a.UserID,
		"role_id":     a.RoleID,
		"assigned_by": a.AssignedBy,
		"assigned_at": a.AssignedAt,
		"expires_at":  sqlNullTimeOrNil(a.ExpiresAt),
		"is_active":   boolToInt(a.IsActive),
	})
	return err
}

func (s *SQLAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	q := `UPDATE user_role_assignments SET is_active = 0 WHERE user_id = :user_id AND role_id = :role_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assignment %s/%s: %w", userID, roleID, access.ErrNotFound)
	}
	return nil
}

func (s *SQLAssignmentStore) ListAssignments(ctx context.Context, userID string) ([]*access.UserRoleAssignment, error) {
	q := `SELECT user_id, role_id, assigned_by, assigned_at, expires_at, is_active FROM user_role_assignments WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.UserRoleAssignment, 0)
	for r.Next() {
		var uid, rid, assignedBy string
		var assignedRaw, expiresRaw interface{}
		var activeInt int
		if err := r.Scan(&uid, &rid, &assignedBy, &assignedRaw, &expiresRaw, &activeInt); err != nil {
			return nil, err
		}
		out = append(out, &access.UserRoleAssignment{
			UserID:     uid,
			RoleID:     rid,
			AssignedBy: assignedBy,
			AssignedAt: scanTime(assignedRaw),
			ExpiresAt:  scanTime(expiresRaw),
			IsActive:   activeInt != 0,
		})
	}
	return out, nil
}
