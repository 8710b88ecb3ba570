package access

import "time"

// Builders provide a fluent API for assembling roles and permissions in
// seeding code and tests

// PermissionBuilder builds a Permission
type PermissionBuilder struct {
	p *Permission
}

func NewPermissionBuilder() *PermissionBuilder {
	return &PermissionBuilder{p: &Permission{Conditions: []PermissionCondition{}}}
}

func (b *PermissionBuilder) ID(id string) *PermissionBuilder { b.p.ID = id; return b }
func (b *PermissionBuilder) Resource(r ResourceKind) *PermissionBuilder {
	b.p.Resource = r
	return b
}
func (b *PermissionBuilder) Action(a ActionVerb) *PermissionBuilder { b.p.Action = a; return b }
func (b *PermissionBuilder) Condition(field string, op ConditionOperator, value any) *PermissionBuilder {
	b.p.Conditions = append(b.p.Conditions, PermissionCondition{Field: field, Operator: op, Value: value})
	return b
}
func (b *PermissionBuilder) Description(d string) *PermissionBuilder { b.p.Description = d; return b }
func (b *PermissionBuilder) System() *PermissionBuilder             { b.p.IsSystem = true; return b }
func (b *PermissionBuilder) DepartmentScoped() *PermissionBuilder {
	b.p.DepartmentScoped = true
	return b
}
func (b *PermissionBuilder) Build() *Permission { return b.p }

// RoleBuilder builds a Role
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{IsActive: true, Permissions: []*Permission{}}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder             { b.r.ID = id; return b }
func (b *RoleBuilder) Name(n string) *RoleBuilder            { b.r.Name = n; return b }
func (b *RoleBuilder) Kind(k SystemRoleKind) *RoleBuilder    { b.r.Kind = k; return b }
func (b *RoleBuilder) Description(d string) *RoleBuilder     { b.r.Description = d; return b }
func (b *RoleBuilder) Parent(roleID string) *RoleBuilder     { b.r.ParentRoleID = roleID; return b }
func (b *RoleBuilder) Inactive() *RoleBuilder                { b.r.IsActive = false; return b }
func (b *RoleBuilder) Permission(p *Permission) *RoleBuilder {
	b.r.Permissions = append(b.r.Permissions, p)
	return b
}
func (b *RoleBuilder) Inherited(p *Permission) *RoleBuilder {
	b.r.Inherited = append(b.r.Inherited, p)
	return b
}
func (b *RoleBuilder) Build() *Role { return b.r }

// AssignmentBuilder builds a UserRoleAssignment
type AssignmentBuilder struct {
	a *UserRoleAssignment
}

func NewAssignmentBuilder() *AssignmentBuilder {
	return &AssignmentBuilder{a: &UserRoleAssignment{IsActive: true}}
}

func (b *AssignmentBuilder) User(id string) *AssignmentBuilder { b.a.UserID = id; return b }
func (b *AssignmentBuilder) Role(id string) *AssignmentBuilder { b.a.RoleID = id; return b }
func (b *AssignmentBuilder) By(actor string) *AssignmentBuilder {
	b.a.AssignedBy = actor
	return b
}
func (b *AssignmentBuilder) At(t time.Time) *AssignmentBuilder { b.a.AssignedAt = t; return b }
func (b *AssignmentBuilder) Expires(t time.Time) *AssignmentBuilder {
	b.a.ExpiresAt = t
	return b
}
func (b *AssignmentBuilder) Inactive() *AssignmentBuilder   { b.a.IsActive = false; return b }
func (b *AssignmentBuilder) Build() *UserRoleAssignment     { return b.a }
