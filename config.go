package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/date"
	"gopkg.in/yaml.v3"
)

// Config is the declarative seed for an access model: roles with their
// permissions, role assignments, and engine settings. Conditions use the
// compact string syntax understood by ParseCondition.
type Config struct {
	Version     int                `json:"version" yaml:"version"`
	Engine      EngineSettings     `json:"engine" yaml:"engine"`
	Roles       []RoleConfig       `json:"roles" yaml:"roles"`
	Assignments []AssignmentConfig `json:"assignments" yaml:"assignments"`
}

type EngineSettings struct {
	AccessLogCap int `json:"access_log_cap" yaml:"access_log_cap"`
	AuditLogCap  int `json:"audit_log_cap" yaml:"audit_log_cap"`
}

type PermissionConfig struct {
	ID               string   `json:"id" yaml:"id"`
	Resource         string   `json:"resource" yaml:"resource"`
	Action           string   `json:"action" yaml:"action"`
	Conditions       []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	DepartmentScoped bool     `json:"department_scoped,omitempty" yaml:"department_scoped,omitempty"`
}

type RoleConfig struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Kind        string             `json:"kind" yaml:"kind"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Parent      string             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Permissions []PermissionConfig `json:"permissions" yaml:"permissions"`
}

type AssignmentConfig struct {
	UserID     string `json:"user_id" yaml:"user_id"`
	RoleID     string `json:"role_id" yaml:"role_id"`
	AssignedBy string `json:"assigned_by,omitempty" yaml:"assigned_by,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// ConfigLoader loads configuration from the supported formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// ToYAML exports the config to YAML
func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

// ToJSON exports the config to indented JSON
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }

// Validate checks every role, permission and assignment without touching a
// store.
func (c *Config) Validate() error {
	roleIDs := make(map[string]bool, len(c.Roles))
	for _, rc := range c.Roles {
		if rc.ID == "" {
			return fmt.Errorf("role with empty id")
		}
		if roleIDs[rc.ID] {
			return fmt.Errorf("duplicate role id %q", rc.ID)
		}
		roleIDs[rc.ID] = true
		if _, err := rc.compile(); err != nil {
			return err
		}
	}
	for _, ac := range c.Assignments {
		if ac.UserID == "" || ac.RoleID == "" {
			return fmt.Errorf("assignment needs user_id and role_id")
		}
		if !roleIDs[ac.RoleID] {
			return fmt.Errorf("assignment for %s references unknown role %q", ac.UserID, ac.RoleID)
		}
		if ac.ExpiresAt != "" {
			if _, err := date.Parse(ac.ExpiresAt); err != nil {
				return fmt.Errorf("assignment for %s: bad expires_at %q: %w", ac.UserID, ac.ExpiresAt, err)
			}
		}
	}
	return nil
}

func (rc *RoleConfig) compile() (*Role, error) {
	role := &Role{
		ID:           rc.ID,
		Name:         rc.Name,
		Kind:         SystemRoleKind(rc.Kind),
		Description:  rc.Description,
		ParentRoleID: rc.Parent,
		IsActive:     true,
	}
	if rc.Kind != "" && !validRoleKind(role.Kind) {
		return nil, fmt.Errorf("role %s: unknown kind %q", rc.ID, rc.Kind)
	}
	for _, pc := range rc.Permissions {
		perm, err := pc.compile()
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", rc.ID, err)
		}
		role.Permissions = append(role.Permissions, perm)
	}
	return role, nil
}

func (pc *PermissionConfig) compile() (*Permission, error) {
	perm := &Permission{
		ID:               pc.ID,
		Resource:         ResourceKind(pc.Resource),
		Action:           ActionVerb(pc.Action),
		Description:      pc.Description,
		DepartmentScoped: pc.DepartmentScoped,
	}
	if perm.ID == "" {
		perm.ID = pc.Resource + ":" + pc.Action
	}
	if !validResource(perm.Resource) {
		return nil, fmt.Errorf("permission %s: unknown resource %q", perm.ID, pc.Resource)
	}
	if !validAction(perm.Action) {
		return nil, fmt.Errorf("permission %s: unknown action %q", perm.ID, pc.Action)
	}
	for _, raw := range pc.Conditions {
		cond, err := ParseCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("permission %s: %w", perm.ID, err)
		}
		perm.Conditions = append(perm.Conditions, cond)
	}
	return perm, nil
}

func validResource(r ResourceKind) bool {
	switch r {
	case ResourceTickets, ResourceUsers, ResourceRoles, ResourceReports,
		ResourceDepartments, ResourceAuditLogs, ResourceSystemSettings:
		return true
	}
	return false
}

func validAction(a ActionVerb) bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionAssign, ActionApprove, ActionExport, ActionConfigure:
		return true
	}
	return false
}

func validRoleKind(k SystemRoleKind) bool {
	for _, kind := range SystemRoleKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// ApplyConfig seeds the stores through the engine's audited mutations, so
// every seeded role and assignment produces its mutation audit entry.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config, meta MutationMeta) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, rc := range cfg.Roles {
		role, err := rc.compile()
		if err != nil {
			return err
		}
		_, err = e.roles.GetRole(ctx, role.ID)
		switch {
		case err == nil:
			if err := e.UpdateRole(ctx, role, meta); err != nil {
				return err
			}
		case errors.Is(err, ErrNotFound):
			if err := e.CreateRole(ctx, role, meta); err != nil {
				return err
			}
		default:
			return fmt.Errorf("look up role %s: %w", role.ID, err)
		}
	}
	for _, ac := range cfg.Assignments {
		var expiresAt time.Time
		if ac.ExpiresAt != "" {
			expiresAt, _ = date.Parse(ac.ExpiresAt) // validated above
		}
		assignMeta := meta
		if ac.AssignedBy != "" {
			assignMeta.PerformedBy = ac.AssignedBy
		}
		if err := e.AssignRoleToUser(ctx, ac.UserID, ac.RoleID, expiresAt, assignMeta); err != nil {
			return err
		}
	}
	return nil
}
