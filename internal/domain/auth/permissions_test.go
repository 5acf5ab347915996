package auth

import "testing"

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

func TestEveryRoleHasGrants(t *testing.T) {
	for _, role := range AllRoles {
		if _, ok := RolePermissions[role]; !ok {
			t.Fatalf("role %s missing from RolePermissions", role)
		}
	}
}

func TestWorkflowGrants(t *testing.T) {
	has := func(role, perm string) bool {
		for _, candidate := range RolePermissions[role] {
			if candidate == perm {
				return true
			}
		}
		return false
	}

	if !has(RoleEmployee, PermSelectionsSubmit) {
		t.Fatal("employees must be able to submit selections")
	}
	if !has(RoleMentor, PermSelectionsApprove) {
		t.Fatal("mentors must be able to decide selections")
	}
	if !has(RoleMentor, PermFeedbackWrite) || !has(RolePeopleCommittee, PermFeedbackWrite) {
		t.Fatal("reviewer roles must be able to write feedback")
	}
	if has(RoleEmployee, PermSelectionsApprove) || has(RoleEmployee, PermFeedbackWrite) {
		t.Fatal("employees must not hold reviewer or mentor grants")
	}
	if !has(RoleSystemAdmin, PermAuditRead) || !has(RoleSystemAdmin, PermUsersDelete) {
		t.Fatal("system administrator must hold audit and delete grants")
	}
	if has(RoleHRLead, PermUsersDelete) {
		t.Fatal("hr lead must not hold the delete grant")
	}
}
