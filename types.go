package access

import (
	"context"
	"errors"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// ResourceKind enumerates the protectable resource kinds
type ResourceKind string

const (
	ResourceTickets        ResourceKind = "tickets"
	ResourceUsers          ResourceKind = "users"
	ResourceRoles          ResourceKind = "roles"
	ResourceReports        ResourceKind = "reports"
	ResourceDepartments    ResourceKind = "departments"
	ResourceAuditLogs      ResourceKind = "audit_logs"
	ResourceSystemSettings ResourceKind = "system_settings"
)

// ActionVerb enumerates the verbs a permission can grant on a resource
type ActionVerb string

const (
	ActionCreate    ActionVerb = "create"
	ActionRead      ActionVerb = "read"
	ActionUpdate    ActionVerb = "update"
	ActionDelete    ActionVerb = "delete"
	ActionAssign    ActionVerb = "assign"
	ActionApprove   ActionVerb = "approve"
	ActionExport    ActionVerb = "export"
	ActionConfigure ActionVerb = "configure"
)

// ConditionOperator enumerates the predicate operators understood by the
// condition evaluator. Anything outside this set evaluates to false.
type ConditionOperator string

const (
	OpEquals         ConditionOperator = "equals"
	OpNotEquals      ConditionOperator = "not_equals"
	OpIn             ConditionOperator = "in"
	OpNotIn          ConditionOperator = "not_in"
	OpGreaterThan    ConditionOperator = "greater_than"
	OpGreaterOrEqual ConditionOperator = "greater_or_equal"
	OpLessThan       ConditionOperator = "less_than"
	OpLessOrEqual    ConditionOperator = "less_or_equal"
	OpContains       ConditionOperator = "contains"
	OpNotContains    ConditionOperator = "not_contains"
)

// PermissionCondition is one predicate attached to a Permission. Value may be
// a literal, a slice for the set operators, or a "@user.<attr>" template
// resolved against the authenticated subject at evaluation time.
type PermissionCondition struct {
	Field       string            `json:"field" yaml:"field"`
	Operator    ConditionOperator `json:"operator" yaml:"operator"`
	Value       any               `json:"value" yaml:"value"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
}

// Permission is one grantable (resource, action, conditions) capability
type Permission struct {
	ID               string                `json:"id"`
	Resource         ResourceKind          `json:"resource"`
	Action           ActionVerb            `json:"action"`
	Conditions       []PermissionCondition `json:"conditions,omitempty"`
	Description      string                `json:"description,omitempty"`
	IsSystem         bool                  `json:"is_system"`
	DepartmentScoped bool                  `json:"department_scoped,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Key returns the dedup key used by the resolver: one effective permission
// per (resource, action) pair.
func (p *Permission) Key() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Role is a named bundle of permissions assignable to a subject
type Role struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Kind         SystemRoleKind `json:"kind"`
	Description  string         `json:"description,omitempty"`
	IsActive     bool           `json:"is_active"`
	ParentRoleID string         `json:"parent_role_id,omitempty"`
	Permissions  []*Permission  `json:"permissions"`
	Inherited    []*Permission  `json:"inherited,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UserRoleAssignment links a subject to a role. Revoked and expired rows are
// kept for audit; they only stop contributing permissions.
type UserRoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"` // zero = no expiry
	IsActive   bool      `json:"is_active"`
}

// IsCurrent reports whether the assignment contributes permissions at now
func (a *UserRoleAssignment) IsCurrent(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt.IsZero() || a.ExpiresAt.After(now)
}

// Subject is the authenticated principal a check runs for
type Subject struct {
	ID         string         `json:"id"`
	Department string         `json:"department,omitempty"`
	LegacyRole string         `json:"legacy_role,omitempty"`
	IsActive   bool           `json:"is_active"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// Attribute resolves a named subject attribute for "@user.<attr>" templates
func (s *Subject) Attribute(name string) (any, bool) {
	switch name {
	case "id", "userId":
		return s.ID, true
	case "department":
		return s.Department, true
	case "role":
		return s.LegacyRole, true
	}
	if s.Attrs != nil {
		if v, ok := s.Attrs[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// AuthorizationContext is the read-only input of a single permission check
type AuthorizationContext struct {
	UserID      string         `json:"user_id"`
	RequestTime time.Time      `json:"request_time"`
	Department  string         `json:"department,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
	Type        string         `json:"type,omitempty"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Attrs       map[string]any `json:"attrs,omitempty"`
}

// Snapshot flattens the context into the attribute bag persisted inside an
// AccessAttempt record.
func (c *AuthorizationContext) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.Attrs)+6)
	for k, v := range c.Attrs {
		snap[k] = v
	}
	snap["userId"] = c.UserID
	if c.Department != "" {
		snap["department"] = c.Department
	}
	if c.OwnerID != "" {
		snap["ownerId"] = c.OwnerID
	}
	if c.AssignedTo != "" {
		snap["assignedTo"] = c.AssignedTo
	}
	if c.Type != "" {
		snap["type"] = c.Type
	}
	if !c.RequestTime.IsZero() {
		snap["requestTime"] = c.RequestTime.Format(time.RFC3339)
	}
	return snap
}

// Verdict is the outcome of one permission check
type Verdict struct {
	Granted           bool          `json:"granted"`
	Reason            string        `json:"reason,omitempty"`
	MatchedPermission *Permission   `json:"matched_permission,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// ============================================================================
// AUDIT RECORDS
// ============================================================================

// AccessAttempt is one logged outcome of a permission check. Append-only.
type AccessAttempt struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Resource  ResourceKind   `json:"resource"`
	Action    ActionVerb     `json:"action"`
	Granted   bool           `json:"granted"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// EntityType tags what kind of access-model record a mutation touched
type EntityType string

const (
	EntityRole           EntityType = "role"
	EntityUserRole       EntityType = "user_role"
	EntityRolePermission EntityType = "role_permission"
	EntityPermission     EntityType = "permission"
	EntitySecurityEvent  EntityType = "security_event"
	EntityConfig         EntityType = "config"
)

// AuditAction is the mutation verb recorded on an audit entry
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditAssign AuditAction = "assign"
	AuditRevoke AuditAction = "revoke"
)

// Severity of a security-event entry. Policy lives with the caller; the
// engine only records what it is given.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ValidSeverity reports whether s is one of the fixed severity tags
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FieldChange is one (field, old, new) tuple inside a mutation audit entry
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// MutationAuditEntry is one logged change to the access model or a
// security-relevant event. Append-only.
type MutationAuditEntry struct {
	ID          string        `json:"id"`
	EntityType  EntityType    `json:"entity_type"`
	EntityID    string        `json:"entity_id"`
	Action      AuditAction   `json:"action"`
	PerformedBy string        `json:"performed_by"`
	Changes     []FieldChange `json:"changes,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Severity    Severity      `json:"severity,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	IP          string        `json:"ip,omitempty"`
	UserAgent   string        `json:"user_agent,omitempty"`
}

// IsSecurityEvent reports whether the entry belongs to the security-only view
func (e *MutationAuditEntry) IsSecurityEvent() bool {
	return e.EntityType == EntitySecurityEvent
}

// ============================================================================
// STORAGE INTERFACES
// ============================================================================

// ErrNotFound marks an absent record, as opposed to a store I/O failure.
// Implementations wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("record not found")

// SubjectStore supplies subject records and the legacy single-role fallback
type SubjectStore interface {
	GetSubject(ctx context.Context, userID string) (*Subject, error)
	LegacyRoleName(ctx context.Context, userID string) (string, error)
}

// RoleStore manages role persistence
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
}

// PermissionStore manages custom permission persistence
type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, id string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
}

// AssignmentStore manages user-role assignment rows. Revoke deactivates a
// row; nothing deletes one.
type AssignmentStore interface {
	Assign(ctx context.Context, a *UserRoleAssignment) error
	Revoke(ctx context.Context, userID, roleID string) error
	ListAssignments(ctx context.Context, userID string) ([]*UserRoleAssignment, error)
}

// AccessLogStore is the durable backing of the access-attempt ring
type AccessLogStore interface {
	AppendAttempt(ctx context.Context, a *AccessAttempt) error
	RecentAttempts(ctx context.Context, limit int) ([]*AccessAttempt, error)
	TrimAttempts(ctx context.Context, keep int) error
}

// AuditLogStore is the durable backing of the mutation-audit ring
type AuditLogStore interface {
	AppendEntry(ctx context.Context, e *MutationAuditEntry) error
	RecentEntries(ctx context.Context, limit int) ([]*MutationAuditEntry, error)
	TrimEntries(ctx context.Context, keep int) error
}
