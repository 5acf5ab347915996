package cycles

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCompleted = "completed"
)

var Statuses = []string{StatusActive, StatusInactive, StatusCompleted}
