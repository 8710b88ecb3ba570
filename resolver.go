package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver aggregates a subject's applicable permissions across its active
// role assignments into one effective permission per (resource, action) key.
type Resolver struct {
	subjects    SubjectStore
	roles       RoleStore
	assignments AssignmentStore
	now         func() time.Time
}

func NewResolver(subjects SubjectStore, roles RoleStore, assignments AssignmentStore) *Resolver {
	return &Resolver{subjects: subjects, roles: roles, assignments: assignments, now: time.Now}
}

// assignmentSource yields the roles a subject's permissions are harvested
// from, in resolution order. Two implementations exist: one reading RBAC
// assignment records, one deriving a synthetic role from the legacy
// single-role string. The source is selected once per subject.
type assignmentSource interface {
	Roles(ctx context.Context) ([]*Role, error)
}

type rbacSource struct {
	roles       RoleStore
	assignments []*UserRoleAssignment
}

func (s *rbacSource) Roles(ctx context.Context) ([]*Role, error) {
	out := make([]*Role, 0, len(s.assignments))
	for _, a := range s.assignments {
		role, err := s.roles.GetRole(ctx, a.RoleID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve role %s: %w", a.RoleID, err)
		}
		if !role.IsActive {
			continue
		}
		out = append(out, role)
	}
	return out, nil
}

type legacySource struct {
	subjects SubjectStore
	userID   string
}

func (s *legacySource) Roles(ctx context.Context) ([]*Role, error) {
	name, err := s.subjects.LegacyRoleName(ctx, s.userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("legacy role for %s: %w", s.userID, err)
	}
	if name == "" {
		return nil, nil
	}
	return []*Role{SynthesizeLegacyRole(MapLegacyRoleName(name))}, nil
}

// sourceFor selects the assignment source for a subject: RBAC records when
// any active-and-unexpired assignment exists, the legacy derivation
// otherwise.
func (r *Resolver) sourceFor(ctx context.Context, userID string) (assignmentSource, error) {
	rows, err := r.assignments.ListAssignments(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("list role assignments for %s: %w", userID, err)
	}
	now := r.now()
	active := make([]*UserRoleAssignment, 0, len(rows))
	for _, a := range rows {
		if a.IsCurrent(now) {
			active = append(active, a)
		}
	}
	if len(active) > 0 {
		return &rbacSource{roles: r.roles, assignments: active}, nil
	}
	return &legacySource{subjects: r.subjects, userID: userID}, nil
}

// EffectivePermissions returns the deduplicated permission sequence for a
// subject: each role's direct then inherited permissions, in role order,
// reduced to the first-seen permission per (resource, action) key. A missing
// or inactive subject resolves to an empty set without error; only store
// failures produce one.
func (r *Resolver) EffectivePermissions(ctx context.Context, subject *Subject) ([]*Permission, error) {
	if subject == nil || !subject.IsActive {
		return nil, nil
	}
	src, err := r.sourceFor(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	roles, err := src.Roles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	effective := make([]*Permission, 0)
	for _, role := range roles {
		for _, p := range role.Permissions {
			if key := p.Key(); !seen[key] {
				seen[key] = true
				effective = append(effective, p)
			}
		}
		for _, p := range role.Inherited {
			if key := p.Key(); !seen[key] {
				seen[key] = true
				effective = append(effective, p)
			}
		}
	}
	return effective, nil
}

// PermissionFor returns the single effective permission for a (resource,
// action) pair, or nil when the subject holds none.
func (r *Resolver) PermissionFor(ctx context.Context, subject *Subject, resource ResourceKind, action ActionVerb) (*Permission, error) {
	perms, err := r.EffectivePermissions(ctx, subject)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return p, nil
		}
	}
	return nil, nil
}
