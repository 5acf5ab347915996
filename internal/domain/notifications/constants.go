package notifications

const (
	TypeSelectionApproved = "selection_approved"
	TypeSelectionSentBack = "selection_sent_back"
	TypeFeedbackSubmitted = "feedback_submitted"
	TypeSystem            = "system"
)
