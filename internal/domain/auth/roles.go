package auth

const (
	RoleEmployee        = "Employee"
	RoleMentor          = "Mentor"
	RoleHRLead          = "HR Lead"
	RoleSystemAdmin     = "System Administrator"
	RolePeopleCommittee = "People Committee"
)

var AllRoles = []string{
	RoleEmployee,
	RoleMentor,
	RoleHRLead,
	RoleSystemAdmin,
	RolePeopleCommittee,
}

// ReviewerRoles are the roles a mentee may pick reviewers from, and the
// roles allowed to author feedback forms.
var ReviewerRoles = []string{RoleMentor, RolePeopleCommittee}

func IsValidRole(role string) bool {
	for _, candidate := range AllRoles {
		if candidate == role {
			return true
		}
	}
	return false
}

func IsReviewerRole(role string) bool {
	for _, candidate := range ReviewerRoles {
		if candidate == role {
			return true
		}
	}
	return false
}

func IsAdminRole(role string) bool {
	return role == RoleHRLead || role == RoleSystemAdmin
}
