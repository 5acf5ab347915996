package selections

import "time"

type Selection struct {
	ID                 string     `json:"id"`
	PerformanceCycleID string     `json:"performanceCycleId"`
	MenteeID           string     `json:"menteeId"`
	Status             string     `json:"status"`
	SubmittedAt        *time.Time `json:"submittedAt,omitempty"`
	MentorFeedback     string     `json:"mentorFeedback,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type UserSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type CycleSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Details is a selection joined with the people and cycle it references,
// the shape approval and my-selection views render.
type Details struct {
	Selection
	Mentee    UserSummary   `json:"mentee"`
	Cycle     CycleSummary  `json:"cycle"`
	Reviewers []UserSummary `json:"reviewers"`
}
