package auth

import (
	"context"
	"testing"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestStaticPermissions(t *testing.T) {
	perms := StaticPermissions{}
	ok, _ := perms.HasPermission(context.Background(), RoleKiosk, PermAttendanceWrite)
	if !ok {
		t.Fatal("kiosk should be able to file attendance")
	}
	ok, _ = perms.HasPermission(context.Background(), RoleKiosk, PermLedgerRead)
	if ok {
		t.Fatal("kiosk should not read ledgers")
	}
	ok, _ = perms.HasPermission(context.Background(), "UNKNOWN", PermStaffRead)
	if ok {
		t.Fatal("unknown role should have no permissions")
	}
}

func TestCanActFor(t *testing.T) {
	staff := UserContext{UserID: "u1", StaffID: "s1", RoleName: RoleStaff}
	if !staff.CanActFor("s1") || staff.CanActFor("s2") {
		t.Fatal("staff may act only for own profile")
	}
	unlinked := UserContext{UserID: "u2", RoleName: RoleStaff}
	if unlinked.CanActFor("") {
		t.Fatal("unlinked staff user should not match empty staff id")
	}
	if !(UserContext{RoleName: RoleAdmin}).CanActFor("s2") {
		t.Fatal("admin may act for anyone")
	}
}
