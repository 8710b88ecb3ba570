package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketops/access/logger"
)

// Denial reasons form a fixed taxonomy; extend it, never rename entries.
const (
	ReasonSubjectInvalid   = "subject not found or inactive"
	ReasonNoPermission     = "no permission for resource/action"
	ReasonConditionsFailed = "conditions not satisfied"

	internalErrorPrefix = "internal evaluation error"
)

func internalErrorReason(err error) string {
	return fmt.Sprintf("%s: %v", internalErrorPrefix, err)
}

// AccessDeniedError is returned by RequirePermission when a check denies
type AccessDeniedError struct {
	UserID   string
	Resource ResourceKind
	Action   ActionVerb
	Reason   string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s may not %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

// IsAccessDenied reports whether err is (or wraps) an AccessDeniedError
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}

// MutationMeta carries the actor and request context of an admin mutation
type MutationMeta struct {
	PerformedBy string
	Reason      string
	IP          string
	UserAgent   string
}

// ============================================================================
// ENGINE
// ============================================================================

// Engine is the single entry point for permission checks and audited
// access-model mutations. Construct with NewEngine, call Init before use,
// Close when done. Checks are safe for concurrent callers.
type Engine struct {
	subjects    SubjectStore
	roles       RoleStore
	permissions PermissionStore
	assignments AssignmentStore
	resolver    *Resolver

	accessLog *AccessLog
	auditLog  *MutationAuditLog

	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	now         func() time.Time

	accessLogCap int
	auditLogCap  int
}

// EngineOption configures an Engine at construction time
type EngineOption func(*Engine) error

// WithLogger installs an operational logger on the engine
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithClock overrides the engine clock, mainly for deterministic tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return fmt.Errorf("nil clock")
		}
		e.now = now
		return nil
	}
}

// WithAccessLogCap bounds the access-attempt ring
func WithAccessLogCap(n int) EngineOption {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("access log cap must be positive, got %d", n)
		}
		e.accessLogCap = n
		return nil
	}
}

// WithAuditLogCap bounds the mutation-audit ring
func WithAuditLogCap(n int) EngineOption {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("audit log cap must be positive, got %d", n)
		}
		e.auditLogCap = n
		return nil
	}
}

func NewEngine(
	subjects SubjectStore,
	roles RoleStore,
	permissions PermissionStore,
	assignments AssignmentStore,
	accessStore AccessLogStore,
	auditStore AuditLogStore,
	opts ...EngineOption,
) (*Engine, error) {
	e := &Engine{
		subjects:     subjects,
		roles:        roles,
		permissions:  permissions,
		assignments:  assignments,
		logger:       logger.NewPhusluLogger(),
		traceIDFunc:  uuid.NewString,
		now:          time.Now,
		accessLogCap: DefaultLogCap,
		auditLogCap:  DefaultLogCap,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.resolver = NewResolver(subjects, roles, assignments)
	e.resolver.now = e.now
	e.accessLog = NewAccessLog(accessStore, e.accessLogCap)
	e.auditLog = NewMutationAuditLog(auditStore, e.auditLogCap)
	return e, nil
}

// Init loads both audit windows from their durable stores. It must be
// called once before the first check or mutation.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.accessLog.Load(ctx); err != nil {
		return err
	}
	if err := e.auditLog.Load(ctx); err != nil {
		return err
	}
	e.logger.Info("access engine initialized",
		"access_window", e.accessLog.Len(),
		"audit_window", e.auditLog.Len())
	return nil
}

// Close tears the engine down. The engine holds no background workers; the
// durable stores are owned and closed by the caller.
func (e *Engine) Close() error {
	e.logger.Debug("access engine closed")
	return nil
}

// AccessLog exposes the read side of the access-attempt log
func (e *Engine) AccessLog() *AccessLog { return e.accessLog }

// AuditLog exposes the read side of the mutation-audit log
func (e *Engine) AuditLog() *MutationAuditLog { return e.auditLog }

// ============================================================================
// PERMISSION CHECKS
// ============================================================================

// CheckPermission decides whether userID may perform action on resource
// under authCtx. It is a total function: every outcome, including store
// failures and panics during evaluation, becomes a verdict, and every call
// appends exactly one access attempt before returning.
func (e *Engine) CheckPermission(ctx context.Context, userID string, resource ResourceKind, action ActionVerb, authCtx *AuthorizationContext) Verdict {
	start := e.now()

	cc := AuthorizationContext{}
	if authCtx != nil {
		cc = *authCtx
	}
	cc.UserID = userID
	cc.RequestTime = start

	verdict := e.evaluate(ctx, userID, resource, action, &cc)
	verdict.Duration = e.now().Sub(start)

	e.recordAttempt(ctx, userID, resource, action, &cc, verdict)
	return verdict
}

// HasPermission is CheckPermission reduced to its boolean
func (e *Engine) HasPermission(ctx context.Context, userID string, resource ResourceKind, action ActionVerb, authCtx *AuthorizationContext) bool {
	return e.CheckPermission(ctx, userID, resource, action, authCtx).Granted
}

// RequirePermission returns an AccessDeniedError carrying the denial reason
// when the check does not grant, nil otherwise.
func (e *Engine) RequirePermission(ctx context.Context, userID string, resource ResourceKind, action ActionVerb, authCtx *AuthorizationContext) error {
	v := e.CheckPermission(ctx, userID, resource, action, authCtx)
	if v.Granted {
		return nil
	}
	return &AccessDeniedError{UserID: userID, Resource: resource, Action: action, Reason: v.Reason}
}

func (e *Engine) evaluate(ctx context.Context, userID string, resource ResourceKind, action ActionVerb, cc *AuthorizationContext) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Verdict{Reason: internalErrorReason(fmt.Errorf("panic: %v", r))}
			e.logger.Error("permission check panicked",
				"user", userID, "resource", string(resource), "action", string(action), "panic", fmt.Sprint(r))
		}
	}()

	subject, err := e.subjects.GetSubject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verdict{Reason: ReasonSubjectInvalid}
		}
		return Verdict{Reason: internalErrorReason(err)}
	}
	if subject == nil || !subject.IsActive {
		return Verdict{Reason: ReasonSubjectInvalid}
	}

	perm, err := e.resolver.PermissionFor(ctx, subject, resource, action)
	if err != nil {
		return Verdict{Reason: internalErrorReason(err)}
	}
	if perm == nil {
		return Verdict{Reason: ReasonNoPermission}
	}

	result := EvaluateConditions(perm.Conditions, cc, subject)
	if !result.Passed {
		e.logger.Debug("conditions not satisfied",
			"user", userID, "permission", perm.ID, "failed", len(result.Failed))
		return Verdict{Reason: ReasonConditionsFailed}
	}
	return Verdict{Granted: true, MatchedPermission: perm}
}

func (e *Engine) recordAttempt(ctx context.Context, userID string, resource ResourceKind, action ActionVerb, cc *AuthorizationContext, v Verdict) {
	attempt := &AccessAttempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Resource:  resource,
		Action:    action,
		Granted:   v.Granted,
		Reason:    v.Reason,
		Timestamp: cc.RequestTime,
		IP:        cc.IP,
		UserAgent: cc.UserAgent,
		Context:   cc.Snapshot(),
	}

	e.logger.Info("access decision",
		"trace_id", e.traceIDFunc(),
		"user", userID,
		"resource", string(resource),
		"action", string(action),
		"granted", v.Granted,
		"reason", v.Reason)

	// a failed append never alters the verdict; it is an operator problem
	if err := e.accessLog.Record(ctx, attempt); err != nil {
		e.logger.Error("access attempt append failed", "attempt", attempt.ID, "error", err.Error())
	}
}

// ============================================================================
// AUDITED MUTATIONS
// ============================================================================

// CreateRole persists a new role and audits the creation
func (e *Engine) CreateRole(ctx context.Context, role *Role, meta MutationMeta) error {
	if role.ID == "" {
		return fmt.Errorf("role ID is required")
	}
	now := e.now()
	role.CreatedAt = now
	role.UpdatedAt = now
	if err := e.roles.CreateRole(ctx, role); err != nil {
		return fmt.Errorf("create role %s: %w", role.ID, err)
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityRole,
		EntityID:    role.ID,
		Action:      AuditCreate,
		PerformedBy: meta.PerformedBy,
		Changes: []FieldChange{
			{Field: "name", New: role.Name},
			{Field: "kind", New: string(role.Kind)},
			{Field: "isActive", New: role.IsActive},
			{Field: "permissions", New: len(role.Permissions)},
		},
		Reason:    meta.Reason,
		Timestamp: now,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

// UpdateRole persists a role update and audits the changed fields
func (e *Engine) UpdateRole(ctx context.Context, role *Role, meta MutationMeta) error {
	old, err := e.roles.GetRole(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("load role %s: %w", role.ID, err)
	}
	now := e.now()
	role.CreatedAt = old.CreatedAt
	role.UpdatedAt = now
	if err := e.roles.UpdateRole(ctx, role); err != nil {
		return fmt.Errorf("update role %s: %w", role.ID, err)
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityRole,
		EntityID:    role.ID,
		Action:      AuditUpdate,
		PerformedBy: meta.PerformedBy,
		Changes:     roleFieldChanges(old, role),
		Reason:      meta.Reason,
		Timestamp:   now,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	})
	return nil
}

func roleFieldChanges(old, updated *Role) []FieldChange {
	changes := make([]FieldChange, 0, 5)
	if old.Name != updated.Name {
		changes = append(changes, FieldChange{Field: "name", Old: old.Name, New: updated.Name})
	}
	if old.Description != updated.Description {
		changes = append(changes, FieldChange{Field: "description", Old: old.Description, New: updated.Description})
	}
	if old.Kind != updated.Kind {
		changes = append(changes, FieldChange{Field: "kind", Old: string(old.Kind), New: string(updated.Kind)})
	}
	if old.IsActive != updated.IsActive {
		changes = append(changes, FieldChange{Field: "isActive", Old: old.IsActive, New: updated.IsActive})
	}
	if old.ParentRoleID != updated.ParentRoleID {
		changes = append(changes, FieldChange{Field: "parentRoleId", Old: old.ParentRoleID, New: updated.ParentRoleID})
	}
	if len(old.Permissions) != len(updated.Permissions) {
		changes = append(changes, FieldChange{Field: "permissions", Old: len(old.Permissions), New: len(updated.Permissions)})
	}
	return changes
}

// AssignRoleToUser creates an active assignment and audits it. A zero
// expiresAt means the assignment does not expire.
func (e *Engine) AssignRoleToUser(ctx context.Context, userID, roleID string, expiresAt time.Time, meta MutationMeta) error {
	if _, err := e.roles.GetRole(ctx, roleID); err != nil {
		return fmt.Errorf("assign role %s: %w", roleID, err)
	}
	now := e.now()
	assignment := &UserRoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: meta.PerformedBy,
		AssignedAt: now,
		ExpiresAt:  expiresAt,
		IsActive:   true,
	}
	if err := e.assignments.Assign(ctx, assignment); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", roleID, userID, err)
	}
	changes := []FieldChange{
		{Field: "roleId", New: roleID},
		{Field: "isActive", New: true},
	}
	if !expiresAt.IsZero() {
		changes = append(changes, FieldChange{Field: "expiresAt", New: expiresAt.Format(time.RFC3339)})
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityUserRole,
		EntityID:    userID,
		Action:      AuditAssign,
		PerformedBy: meta.PerformedBy,
		Changes:     changes,
		Reason:      meta.Reason,
		Timestamp:   now,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	})
	return nil
}

// RevokeRoleFromUser deactivates an assignment and audits it. The row stays
// in the store for audit.
func (e *Engine) RevokeRoleFromUser(ctx context.Context, userID, roleID string, meta MutationMeta) error {
	if err := e.assignments.Revoke(ctx, userID, roleID); err != nil {
		return fmt.Errorf("revoke role %s from %s: %w", roleID, userID, err)
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityUserRole,
		EntityID:    userID,
		Action:      AuditRevoke,
		PerformedBy: meta.PerformedBy,
		Changes: []FieldChange{
			{Field: "roleId", Old: roleID},
			{Field: "isActive", Old: true, New: false},
		},
		Reason:    meta.Reason,
		Timestamp: e.now(),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

// CreatePermission persists a custom permission and audits the creation
func (e *Engine) CreatePermission(ctx context.Context, perm *Permission, meta MutationMeta) error {
	if perm.ID == "" {
		return fmt.Errorf("permission ID is required")
	}
	now := e.now()
	perm.CreatedAt = now
	perm.UpdatedAt = now
	if err := e.permissions.CreatePermission(ctx, perm); err != nil {
		return fmt.Errorf("create permission %s: %w", perm.ID, err)
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityPermission,
		EntityID:    perm.ID,
		Action:      AuditCreate,
		PerformedBy: meta.PerformedBy,
		Changes: []FieldChange{
			{Field: "resource", New: string(perm.Resource)},
			{Field: "action", New: string(perm.Action)},
			{Field: "conditions", New: len(perm.Conditions)},
		},
		Reason:    meta.Reason,
		Timestamp: now,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

// RecordSecurityEvent writes a security-event audit entry. Severity policy
// lives with the caller; values outside the fixed set default to LOW.
func (e *Engine) RecordSecurityEvent(ctx context.Context, severity Severity, meta MutationMeta, changes ...FieldChange) {
	if !ValidSeverity(severity) {
		severity = SeverityLow
	}
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntitySecurityEvent,
		EntityID:    meta.PerformedBy,
		Action:      AuditCreate,
		PerformedBy: meta.PerformedBy,
		Changes:     changes,
		Reason:      meta.Reason,
		Severity:    severity,
		Timestamp:   e.now(),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	})
}

// RecordConfigChange writes a system-configuration audit entry
func (e *Engine) RecordConfigChange(ctx context.Context, key string, oldValue, newValue any, meta MutationMeta) {
	e.audit(ctx, &MutationAuditEntry{
		EntityType:  EntityConfig,
		EntityID:    key,
		Action:      AuditUpdate,
		PerformedBy: meta.PerformedBy,
		Changes:     []FieldChange{{Field: key, Old: oldValue, New: newValue}},
		Reason:      meta.Reason,
		Timestamp:   e.now(),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	})
}

// audit appends one mutation entry; append failure is logged and swallowed
// so the mutation it describes is not failed retroactively.
func (e *Engine) audit(ctx context.Context, entry *MutationAuditEntry) {
	entry.ID = uuid.NewString()
	if err := e.auditLog.Record(ctx, entry); err != nil {
		e.logger.Error("mutation audit append failed",
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID,
			"error", err.Error())
	}
}
