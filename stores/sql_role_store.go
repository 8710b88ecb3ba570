package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *access.Role) error {
	perms, _ := json.Marshal(r.Permissions)
	inherited, _ := json.Marshal(r.Inherited)
	q := `INSERT INTO roles(id, name, kind, description, is_active, parent_role_id, permissions_json, inherited_json, created_at, updated_at) VALUES(:id, :name, :kind, :description, :is_active, :parent_role_id, :permissions_json, :inherited_json, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"kind":             string(r.Kind),
		"description":      r.Description,
		"is_active":        boolToInt(r.IsActive),
		"parent_role_id":   r.ParentRoleID,
		"permissions_json": string(perms),
		"inherited_json":   string(inherited),
		"created_at":       r.CreatedAt,
		"updated_at":       r.UpdatedAt,
	})
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *access.Role) error {
	perms, _ := json.Marshal(r.Permissions)
	inherited, _ := json.Marshal(r.Inherited)
	q := `UPDATE roles SET name=:name, kind=:kind, description=:description, is_active=:is_active, parent_role_id=:parent_role_id, permissions_json=:permissions_json, inherited_json=:inherited_json, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"kind":             string(r.Kind),
		"description":      r.Description,
		"is_active":        boolToInt(r.IsActive),
		"parent_role_id":   r.ParentRoleID,
		"permissions_json": string(perms),
		"inherited_json":   string(inherited),
		"updated_at":       r.UpdatedAt,
	})
	return err
}

func (s *SQLRoleStore) GetRole(ctx context.Context, id string) (*access.Role, error) {
	q := `SELECT id, name, kind, description, is_active, parent_role_id, permissions_json, inherited_json, created_at, updated_at FROM roles WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("role %s: %w", id, access.ErrNotFound)
	}
	return scanRole(r)
}

func (s *SQLRoleStore) ListRoles(ctx context.Context) ([]*access.Role, error) {
	q := `SELECT id, name, kind, description, is_active, parent_role_id, permissions_json, inherited_json, created_at, updated_at FROM roles`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.Role, 0)
	for r.Next() {
		role, err := scanRole(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(r rowScanner) (*access.Role, error) {
	var id, name, kind, description, parentID, permsJSON, inheritedJSON string
	var activeInt int
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &name, &kind, &description, &activeInt, &parentID, &permsJSON, &inheritedJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	role := &access.Role{
		ID:           id,
		Name:         name,
		Kind:         access.SystemRoleKind(kind),
		Description:  description,
		IsActive:     activeInt != 0,
		ParentRoleID: parentID,
		CreatedAt:    scanTime(createdRaw),
		UpdatedAt:    scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(permsJSON), &role.Permissions)
	_ = json.Unmarshal([]byte(inheritedJSON), &role.Inherited)
	return role, nil
}
