package feedback

import "time"

type Form struct {
	ID                 string     `json:"id"`
	EmployeeID         string     `json:"employeeId"`
	ReviewerID         string     `json:"reviewerId"`
	PerformanceCycleID string     `json:"performanceCycleId"`
	Strengths          string     `json:"strengths"`
	Improvements       string     `json:"improvements"`
	OverallRating      string     `json:"overallRating,omitempty"`
	Status             string     `json:"status"`
	SubmittedAt        *time.Time `json:"submittedAt,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type FormDetails struct {
	Form
	EmployeeName string `json:"employeeName"`
	ReviewerName string `json:"reviewerName"`
	CycleName    string `json:"cycleName"`
}

type ListFilter struct {
	Status     string
	EmployeeID string
}

// Assignment is one employee a reviewer owes a form for, derived from
// approved selections naming the reviewer.
type Assignment struct {
	EmployeeID         string `json:"employeeId"`
	EmployeeName       string `json:"employeeName"`
	EmployeeEmail      string `json:"employeeEmail"`
	EmployeeDepartment string `json:"employeeDepartment"`
	PerformanceCycleID string `json:"performanceCycleId"`
	CycleName          string `json:"cycleName"`
	FormID             string `json:"formId,omitempty"`
	FormStatus         string `json:"formStatus"`
}
