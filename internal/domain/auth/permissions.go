package auth

const (
	PermUsersRead           = "users.read"
	PermUsersWrite          = "users.write"
	PermUsersDelete         = "users.delete"
	PermCyclesManage        = "cycles.manage"
	PermSelectionsSubmit    = "selections.submit"
	PermSelectionsApprove   = "selections.approve"
	PermFeedbackWrite       = "feedback.write"
	PermReportsRead         = "reports.read"
	PermAuditRead           = "audit.read"
	PermNotificationsManage = "notifications.manage"
	PermMetricsRead         = "metrics.read"
)

var DefaultPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermUsersDelete,
	PermCyclesManage,
	PermSelectionsSubmit,
	PermSelectionsApprove,
	PermFeedbackWrite,
	PermReportsRead,
	PermAuditRead,
	PermNotificationsManage,
	PermMetricsRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermSelectionsSubmit,
	},
	RoleMentor: {
		PermSelectionsApprove,
		PermFeedbackWrite,
	},
	RolePeopleCommittee: {
		PermFeedbackWrite,
	},
	RoleHRLead: {
		PermUsersRead,
		PermUsersWrite,
		PermCyclesManage,
		PermReportsRead,
		PermNotificationsManage,
	},
	RoleSystemAdmin: {
		PermUsersRead,
		PermUsersWrite,
		PermUsersDelete,
		PermCyclesManage,
		PermReportsRead,
		PermAuditRead,
		PermNotificationsManage,
		PermMetricsRead,
	},
}
