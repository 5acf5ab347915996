package reports

import (
	"perfreview/internal/domain/feedback"
	"perfreview/internal/domain/selections"
)

// Dashboard builders are pure so the per-role payload shapes can be tested
// without a database. Each payload carries a role tag the client switches on.

const (
	TagEmployee  = "employee"
	TagMentor    = "mentor"
	TagCommittee = "committee"
	TagAdmin     = "admin"
)

// SelectionStatusNone is reported when the caller has no selection in the
// active cycle, or no cycle is active at all.
const SelectionStatusNone = "not_submitted"

func EmployeeDashboard(reviewersSelected int, selectionStatus string) map[string]any {
	if selectionStatus == "" {
		selectionStatus = SelectionStatusNone
	}
	return map[string]any{
		"role":              TagEmployee,
		"reviewersSelected": reviewersSelected,
		"selectionStatus":   selectionStatus,
	}
}

// MentorDashboard includes the reviewer block because mentors author
// feedback forms as well as approving selections.
func MentorDashboard(pendingApprovals, approvedToday, menteesTotal, assignedAwaitingForm, formsSubmitted, formsDraft int) map[string]any {
	return map[string]any{
		"role":                 TagMentor,
		"pendingApprovals":     pendingApprovals,
		"approvedToday":        approvedToday,
		"menteesTotal":         menteesTotal,
		"assignedAwaitingForm": assignedAwaitingForm,
		"formsSubmitted":       formsSubmitted,
		"formsDraft":           formsDraft,
	}
}

func CommitteeDashboard(assignedAwaitingForm, formsSubmitted, formsDraft int) map[string]any {
	return map[string]any{
		"role":                 TagCommittee,
		"assignedAwaitingForm": assignedAwaitingForm,
		"formsSubmitted":       formsSubmitted,
		"formsDraft":           formsDraft,
	}
}

// AdminDashboard folds raw status counts into fixed keys so absent statuses
// show up as zero instead of disappearing. activeCycle may be nil.
func AdminDashboard(totalUsers, activeUsers int, activeCycle map[string]any, selectionCounts, formCounts map[string]int) map[string]any {
	payload := map[string]any{
		"role":        TagAdmin,
		"totalUsers":  totalUsers,
		"activeUsers": activeUsers,
		"selections": map[string]int{
			"pending":  selectionCounts[selections.StatusPending],
			"approved": selectionCounts[selections.StatusApproved],
			"sentBack": selectionCounts[selections.StatusSentBack],
		},
		"forms": map[string]int{
			"draft":     formCounts[feedback.StatusDraft],
			"submitted": formCounts[feedback.StatusSubmitted],
		},
	}
	if activeCycle != nil {
		payload["activeCycle"] = activeCycle
	}
	return payload
}

// CycleSummary shapes the per-cycle report payload shared by the JSON and
// PDF endpoints.
func CycleSummary(cycle map[string]any, participants int, selectionCounts, formCounts, ratingCounts map[string]int) map[string]any {
	ratings := map[string]int{}
	for _, rating := range feedback.Ratings {
		ratings[rating] = ratingCounts[rating]
	}
	return map[string]any{
		"cycle":        cycle,
		"participants": participants,
		"selections": map[string]int{
			"pending":  selectionCounts[selections.StatusPending],
			"approved": selectionCounts[selections.StatusApproved],
			"sentBack": selectionCounts[selections.StatusSentBack],
		},
		"forms": map[string]int{
			"draft":     formCounts[feedback.StatusDraft],
			"submitted": formCounts[feedback.StatusSubmitted],
		},
		"ratings": ratings,
	}
}
