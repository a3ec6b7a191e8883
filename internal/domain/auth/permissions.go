package auth

import (
	"context"
	"slices"
)

const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
	RoleKiosk = "KIOSK"
)

const (
	PermStaffRead         = "staff.read"
	PermStaffWrite        = "staff.write"
	PermAttendanceRead    = "attendance.read"
	PermAttendanceWrite   = "attendance.write"
	PermAttendanceManage  = "attendance.manage"
	PermLedgerRead        = "ledger.read"
	PermLedgerWrite       = "ledger.write"
	PermLedgerApprove     = "ledger.approve"
	PermReportsRead       = "reports.read"
	PermAuditRead         = "audit.read"
	PermSystemMaintenance = "system.maintenance"
)

var DefaultPermissions = []string{
	PermStaffRead,
	PermStaffWrite,
	PermAttendanceRead,
	PermAttendanceWrite,
	PermAttendanceManage,
	PermLedgerRead,
	PermLedgerWrite,
	PermLedgerApprove,
	PermReportsRead,
	PermAuditRead,
	PermSystemMaintenance,
}

var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermStaffRead,
		PermStaffWrite,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermAttendanceManage,
		PermLedgerRead,
		PermLedgerWrite,
		PermLedgerApprove,
		PermReportsRead,
		PermAuditRead,
		PermSystemMaintenance,
	},
	RoleStaff: {
		PermStaffRead,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermLedgerRead,
		PermLedgerWrite,
	},
	RoleKiosk: {
		PermStaffRead,
		PermAttendanceWrite,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

type UserContext struct {
	UserID   string
	StaffID  string
	RoleName string
}

func (u UserContext) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}

// CanActFor reports whether u may act on records belonging to staffID.
func (u UserContext) CanActFor(staffID string) bool {
	return u.RoleName == RoleAdmin || u.RoleName == RoleKiosk || (staffID != "" && u.StaffID == staffID)
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	return slices.Contains(RolePermissions[roleName], permission), nil
}
