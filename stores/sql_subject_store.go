package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLSubjectStore reads subjects from SQL (squealx)
type SQLSubjectStore struct {
	db *squealx.DB
}

func NewSQLSubjectStore(db *squealx.DB) *SQLSubjectStore {
	return &SQLSubjectStore{db: db}
}

func (s *SQLSubjectStore) PutSubject(ctx context.Context, sub *access.Subject) error {
	attrs, _ := json.Marshal(sub.Attrs)
	q := `INSERT INTO subjects(id, department, legacy_role, is_active, attrs_json) VALUES(:id, :department, :legacy_role, :is_active, :attrs_json)
ON CONFLICT(id) DO UPDATE SET department=:department, legacy_role=:legacy_role, is_active=:is_active, attrs_json=:attrs_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          sub.ID,
		"department":  sub.Department,
		"legacy_role": sub.LegacyRole,
		"is_active":   boolToInt(sub.IsActive),
		"attrs_json":  string(attrs),
	})
	return err
}

func (s *SQLSubjectStore) GetSubject(ctx context.Context, userID string) (*access.Subject, error) {
	q := `SELECT id, department, legacy_role, is_active, attrs_json FROM subjects WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("subject %s: %w", userID, access.ErrNotFound)
	}
	var id, department, legacyRole, attrsJSON string
	var activeInt int
	if err := r.Scan(&id, &department, &legacyRole, &activeInt, &attrsJSON); err != nil {
		return nil, err
	}
	sub := &access.Subject{ID: id, Department: department, LegacyRole: legacyRole, IsActive: activeInt != 0}
	_ = json.Unmarshal([]byte(attrsJSON), &sub.Attrs)
	return sub, nil
}

func (s *SQLSubjectStore) LegacyRoleName(ctx context.Context, userID string) (string, error) {
	sub, err := s.GetSubject(ctx, userID)
	if err != nil {
		return "", err
	}
	return sub.LegacyRole, nil
}
