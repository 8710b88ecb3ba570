package access

import "strings"

// SystemRoleKind enumerates the fixed system role kinds
type SystemRoleKind string

const (
	RoleKindAdmin             SystemRoleKind = "admin"
	RoleKindDepartmentManager SystemRoleKind = "department_manager"
	RoleKindTeamLead          SystemRoleKind = "team_lead"
	RoleKindAgent             SystemRoleKind = "agent"
	RoleKindEmployee          SystemRoleKind = "employee"
	RoleKindAuditor           SystemRoleKind = "auditor"
)

// SystemRoleKinds lists every kind the product defines, in display order
func SystemRoleKinds() []SystemRoleKind {
	return []SystemRoleKind{
		RoleKindAdmin,
		RoleKindDepartmentManager,
		RoleKindTeamLead,
		RoleKindAgent,
		RoleKindEmployee,
		RoleKindAuditor,
	}
}

// legacyRoleNames maps the legacy single-role strings onto system role kinds.
// Lookup is case-insensitive; unmapped names fall back to employee.
var legacyRoleNames = map[string]SystemRoleKind{
	"admin":              RoleKindAdmin,
	"administrator":      RoleKindAdmin,
	"superadmin":         RoleKindAdmin,
	"manager":            RoleKindDepartmentManager,
	"department manager": RoleKindDepartmentManager,
	"department_manager": RoleKindDepartmentManager,
	"team lead":          RoleKindTeamLead,
	"team_lead":          RoleKindTeamLead,
	"teamlead":           RoleKindTeamLead,
	"supervisor":         RoleKindTeamLead,
	"agent":              RoleKindAgent,
	"support":            RoleKindAgent,
	"support agent":      RoleKindAgent,
	"technician":         RoleKindAgent,
	"employee":           RoleKindEmployee,
	"staff":              RoleKindEmployee,
	"user":               RoleKindEmployee,
	"auditor":            RoleKindAuditor,
	"compliance":         RoleKindAuditor,
}

// MapLegacyRoleName resolves a legacy role string to a system role kind
func MapLegacyRoleName(name string) SystemRoleKind {
	if kind, ok := legacyRoleNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return kind
	}
	return RoleKindEmployee
}

// grant is one row of the default-policy table
type grant struct {
	resource   ResourceKind
	action     ActionVerb
	conditions []PermissionCondition
}

func ownDepartment() []PermissionCondition {
	return []PermissionCondition{{
		Field:       "department",
		Operator:    OpEquals,
		Value:       "@user.department",
		Description: "restricted to the subject's own department",
	}}
}

// systemRoleGrants is the canonical default-policy table: the permissions a
// synthesized legacy role carries, one fixed list per role kind.
var systemRoleGrants = map[SystemRoleKind][]grant{
	RoleKindAdmin: {
		{resource: ResourceTickets, action: ActionCreate},
		{resource: ResourceTickets, action: ActionRead},
		{resource: ResourceTickets, action: ActionUpdate},
		{resource: ResourceTickets, action: ActionDelete},
		{resource: ResourceTickets, action: ActionAssign},
		{resource: ResourceTickets, action: ActionApprove},
		{resource: ResourceUsers, action: ActionCreate},
		{resource: ResourceUsers, action: ActionRead},
		{resource: ResourceUsers, action: ActionUpdate},
		{resource: ResourceUsers, action: ActionDelete},
		{resource: ResourceRoles, action: ActionCreate},
		{resource: ResourceRoles, action: ActionRead},
		{resource: ResourceRoles, action: ActionUpdate},
		{resource: ResourceRoles, action: ActionDelete},
		{resource: ResourceRoles, action: ActionAssign},
		{resource: ResourceReports, action: ActionRead},
		{resource: ResourceReports, action: ActionExport},
		{resource: ResourceDepartments, action: ActionCreate},
		{resource: ResourceDepartments, action: ActionRead},
		{resource: ResourceDepartments, action: ActionUpdate},
		{resource: ResourceDepartments, action: ActionDelete},
		{resource: ResourceAuditLogs, action: ActionRead},
		{resource: ResourceAuditLogs, action: ActionExport},
		{resource: ResourceSystemSettings, action: ActionRead},
		{resource: ResourceSystemSettings, action: ActionConfigure},
	},
	RoleKindDepartmentManager: {
		{resource: ResourceTickets, action: ActionCreate},
		{resource: ResourceTickets, action: ActionRead, conditions: ownDepartment()},
		{resource: ResourceTickets, action: ActionUpdate, conditions: ownDepartment()},
		{resource: ResourceTickets, action: ActionAssign, conditions: ownDepartment()},
		{resource: ResourceTickets, action: ActionApprove, conditions: ownDepartment()},
		{resource: ResourceUsers, action: ActionRead, conditions: ownDepartment()},
		{resource: ResourceReports, action: ActionRead, conditions: ownDepartment()},
		{resource: ResourceReports, action: ActionExport, conditions: ownDepartment()},
		{resource: ResourceDepartments, action: ActionRead},
	},
	RoleKindTeamLead: {
		{resource: ResourceTickets, action: ActionCreate},
		{resource: ResourceTickets, action: ActionRead, conditions: ownDepartment()},
		{resource: ResourceTickets, action: ActionUpdate, conditions: ownDepartment()},
		{resource: ResourceTickets, action: ActionAssign, conditions: ownDepartment()},
		{resource: ResourceReports, action: ActionRead, conditions: ownDepartment()},
	},
	RoleKindAgent: {
		{resource: ResourceTickets, action: ActionCreate},
		{resource: ResourceTickets, action: ActionRead},
		{resource: ResourceTickets, action: ActionUpdate, conditions: []PermissionCondition{{
			Field:       "assignedTo",
			Operator:    OpEquals,
			Value:       "@user.id",
			Description: "agents may only update tickets assigned to them",
		}}},
	},
	RoleKindEmployee: {
		{resource: ResourceTickets, action: ActionCreate},
		{resource: ResourceTickets, action: ActionRead, conditions: []PermissionCondition{{
			Field:       "ownerId",
			Operator:    OpEquals,
			Value:       "@user.id",
			Description: "employees may only read their own tickets",
		}}},
		{resource: ResourceUsers, action: ActionRead, conditions: []PermissionCondition{{
			Field:       "userId",
			Operator:    OpEquals,
			Value:       "@user.id",
			Description: "employees may only read their own profile",
		}}},
	},
	RoleKindAuditor: {
		{resource: ResourceTickets, action: ActionRead},
		{resource: ResourceReports, action: ActionRead},
		{resource: ResourceAuditLogs, action: ActionRead},
		{resource: ResourceAuditLogs, action: ActionExport},
	},
}

// SystemRolePermissions materializes the default permission list for a role
// kind. The returned permissions are fresh copies; callers may attach them to
// synthesized roles without aliasing the table.
func SystemRolePermissions(kind SystemRoleKind) []*Permission {
	rows, ok := systemRoleGrants[kind]
	if !ok {
		rows = systemRoleGrants[RoleKindEmployee]
	}
	perms := make([]*Permission, 0, len(rows))
	for _, row := range rows {
		conds := make([]PermissionCondition, len(row.conditions))
		copy(conds, row.conditions)
		perms = append(perms, &Permission{
			ID:         "system:" + string(kind) + ":" + string(row.resource) + ":" + string(row.action),
			Resource:   row.resource,
			Action:     row.action,
			Conditions: conds,
			IsSystem:   true,
		})
	}
	return perms
}

// SynthesizeLegacyRole builds the in-memory role a legacy single-role subject
// resolves against.
func SynthesizeLegacyRole(kind SystemRoleKind) *Role {
	return &Role{
		ID:          "legacy:" + string(kind),
		Name:        string(kind),
		Kind:        kind,
		IsActive:    true,
		Permissions: SystemRolePermissions(kind),
	}
}
