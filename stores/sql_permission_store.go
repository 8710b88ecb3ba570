package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLPermissionStore persists custom permissions in SQL (squealx)
type SQLPermissionStore struct {
	db *squealx.DB
}

func NewSQLPermissionStore(db *squealx.DB) *SQLPermissionStore {
	return &SQLPermissionStore{db: db}
}

func (s *SQLPermissionStore) CreatePermission(ctx context.Context, p *access.Permission) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `INSERT INTO permissions(id, resource, action, conditions_json, description, is_system, department_scoped, created_at, updated_at) VALUES(:id, :resource, :action, :conditions_json, :description, :is_system, :department_scoped, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                p.ID,
		"resource":          string(p.Resource),
		"action":            string(p.Action),
		"conditions_json":   string(conds),
		"description":       p.Description,
		"is_system":         boolToInt(p.IsSystem),
		"department_scoped": boolToInt(p.DepartmentScoped),
		"created_at":        p.CreatedAt,
		"updated_at":        p.UpdatedAt,
	})
	return err
}

func (s *SQLPermissionStore) GetPermission(ctx context.Context, id string) (*access.Permission, error) {
	q := `SELECT id, resource, action, conditions_json, description, is_system, department_scoped, created_at, updated_at FROM permissions WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("permission %s: %w", id, access.ErrNotFound)
	}
	return scanPermission(r)
}

func (s *SQLPermissionStore) ListPermissions(ctx context.Context) ([]*access.Permission, error) {
	q := `SELECT id, resource, action, conditions_json, description, is_system, department_scoped, created_at, updated_at FROM permissions`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.Permission, 0)
	for r.Next() {
		p, err := scanPermission(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPermission(r rowScanner) (*access.Permission, error) {
	var id, resource, action, condsJSON, description string
	var systemInt, scopedInt int
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &resource, &action, &condsJSON, &description, &systemInt, &scopedInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &access.Permission{
		ID:               id,
		Resource:         access.ResourceKind(resource),
		Action:           access.ActionVerb(action),
		Description:      description,
		IsSystem:         systemInt != 0,
		DepartmentScoped: scopedInt != 0,
		CreatedAt:        scanTime(createdRaw),
		UpdatedAt:        scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(condsJSON), &p.Conditions)
	return p, nil
}
