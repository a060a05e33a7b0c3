package auth

import (
	"context"
	"slices"
)

const (
	PermLeaveRead      = "leave.read"
	PermLeaveWrite     = "leave.write"
	PermLeaveApprove   = "leave.approve"
	PermLeaveAdmin     = "leave.admin"
	PermEmployeesWrite = "employees.write"
	PermAuditRead      = "audit.read"
)

var RolePermissions = map[Role][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
		PermAuditRead,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermEmployeesWrite,
		PermAuditRead,
	},
	RoleSuperAdmin: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermEmployeesWrite,
		PermAuditRead,
	},
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role Role, permission string) (bool, error) {
	return slices.Contains(RolePermissions[role], permission), nil
}
