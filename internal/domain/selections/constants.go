package selections

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusSentBack = "sent_back"
)

var Statuses = []string{StatusPending, StatusApproved, StatusSentBack}
