package reports

import "testing"

func TestEmployeeDashboard(t *testing.T) {
	payload := EmployeeDashboard(3, "pending")
	if payload["role"].(string) != TagEmployee {
		t.Fatal("unexpected role tag")
	}
	if payload["reviewersSelected"].(int) != 3 {
		t.Fatal("unexpected reviewer count")
	}
	if payload["selectionStatus"].(string) != "pending" {
		t.Fatal("unexpected selection status")
	}
}

func TestEmployeeDashboardNoSelection(t *testing.T) {
	payload := EmployeeDashboard(0, "")
	if payload["selectionStatus"].(string) != SelectionStatusNone {
		t.Fatal("empty status should report not_submitted")
	}
	if payload["reviewersSelected"].(int) != 0 {
		t.Fatal("unexpected reviewer count")
	}
}

func TestMentorDashboard(t *testing.T) {
	payload := MentorDashboard(2, 1, 5, 4, 3, 1)
	if payload["role"].(string) != TagMentor {
		t.Fatal("unexpected role tag")
	}
	if payload["pendingApprovals"].(int) != 2 {
		t.Fatal("unexpected pending approvals")
	}
	if payload["approvedToday"].(int) != 1 {
		t.Fatal("unexpected approved today")
	}
	if payload["menteesTotal"].(int) != 5 {
		t.Fatal("unexpected mentees total")
	}
	if payload["assignedAwaitingForm"].(int) != 4 {
		t.Fatal("unexpected awaiting count")
	}
	if payload["formsSubmitted"].(int) != 3 {
		t.Fatal("unexpected submitted count")
	}
	if payload["formsDraft"].(int) != 1 {
		t.Fatal("unexpected draft count")
	}
}

func TestCommitteeDashboard(t *testing.T) {
	payload := CommitteeDashboard(4, 2, 1)
	if payload["role"].(string) != TagCommittee {
		t.Fatal("unexpected role tag")
	}
	if payload["assignedAwaitingForm"].(int) != 4 {
		t.Fatal("unexpected awaiting count")
	}
	if payload["formsSubmitted"].(int) != 2 {
		t.Fatal("unexpected submitted count")
	}
	if payload["formsDraft"].(int) != 1 {
		t.Fatal("unexpected draft count")
	}
}

func TestAdminDashboard(t *testing.T) {
	payload := AdminDashboard(10, 8,
		map[string]any{"id": "c1", "name": "H1 2026"},
		map[string]int{"pending": 2, "approved": 5},
		map[string]int{"submitted": 4},
	)
	if payload["role"].(string) != TagAdmin {
		t.Fatal("unexpected role tag")
	}
	if payload["totalUsers"].(int) != 10 || payload["activeUsers"].(int) != 8 {
		t.Fatal("unexpected user counts")
	}
	selectionCounts := payload["selections"].(map[string]int)
	if selectionCounts["pending"] != 2 || selectionCounts["approved"] != 5 || selectionCounts["sentBack"] != 0 {
		t.Fatal("unexpected selection counts")
	}
	formCounts := payload["forms"].(map[string]int)
	if formCounts["draft"] != 0 || formCounts["submitted"] != 4 {
		t.Fatal("unexpected form counts")
	}
	cycle := payload["activeCycle"].(map[string]any)
	if cycle["name"].(string) != "H1 2026" {
		t.Fatal("unexpected active cycle")
	}
}

func TestAdminDashboardNoActiveCycle(t *testing.T) {
	payload := AdminDashboard(1, 1, nil, nil, nil)
	if _, ok := payload["activeCycle"]; ok {
		t.Fatal("activeCycle should be omitted when no cycle is active")
	}
	selectionCounts := payload["selections"].(map[string]int)
	if selectionCounts["pending"] != 0 {
		t.Fatal("missing statuses should count as zero")
	}
}

func TestCycleSummary(t *testing.T) {
	payload := CycleSummary(
		map[string]any{"id": "c1", "name": "H1 2026"},
		6,
		map[string]int{"approved": 4, "sent_back": 1},
		map[string]int{"draft": 2, "submitted": 3},
		map[string]int{"tracking_expected": 2, "tracking_above": 1},
	)
	if payload["participants"].(int) != 6 {
		t.Fatal("unexpected participant count")
	}
	selectionCounts := payload["selections"].(map[string]int)
	if selectionCounts["approved"] != 4 || selectionCounts["sentBack"] != 1 || selectionCounts["pending"] != 0 {
		t.Fatal("unexpected selection counts")
	}
	ratings := payload["ratings"].(map[string]int)
	if ratings["tracking_below"] != 0 || ratings["tracking_expected"] != 2 || ratings["tracking_above"] != 1 {
		t.Fatal("unexpected rating distribution")
	}
}
