package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/feedback"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) ActiveCycle(ctx context.Context) (map[string]any, error) {
	return s.Store.ActiveCycle(ctx)
}

func (s *Service) SelectionStatus(ctx context.Context, menteeID, cycleID string) (string, int, bool, error) {
	return s.Store.SelectionStatus(ctx, menteeID, cycleID)
}

func (s *Service) PendingApprovals(ctx context.Context) (int, error) {
	return s.Store.PendingApprovals(ctx)
}

func (s *Service) ApprovedToday(ctx context.Context) (int, error) {
	return s.Store.ApprovedToday(ctx)
}

func (s *Service) MenteesTotal(ctx context.Context) (int, error) {
	return s.Store.MenteesTotal(ctx)
}

func (s *Service) AssignedAwaitingForm(ctx context.Context, reviewerID string) (int, error) {
	return s.Store.AssignedAwaitingForm(ctx, reviewerID)
}

func (s *Service) FormsByReviewerAndStatus(ctx context.Context, reviewerID, status string) (int, error) {
	return s.Store.FormsByReviewerAndStatus(ctx, reviewerID, status)
}

func (s *Service) TotalUsers(ctx context.Context) (int, error) {
	return s.Store.TotalUsers(ctx)
}

func (s *Service) ActiveUsers(ctx context.Context) (int, error) {
	return s.Store.ActiveUsers(ctx)
}

func (s *Service) SelectionCounts(ctx context.Context) (map[string]int, error) {
	return s.Store.SelectionCounts(ctx)
}

func (s *Service) FormCounts(ctx context.Context) (map[string]int, error) {
	return s.Store.FormCounts(ctx)
}

func (s *Service) CycleParticipants(ctx context.Context, cycleID string) (int, error) {
	return s.Store.CycleParticipants(ctx, cycleID)
}

func (s *Service) CycleSelectionCounts(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.Store.CycleSelectionCounts(ctx, cycleID)
}

func (s *Service) CycleFormCounts(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.Store.CycleFormCounts(ctx, cycleID)
}

func (s *Service) CycleRatingDistribution(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.Store.CycleRatingDistribution(ctx, cycleID)
}

var ratingLabels = map[string]string{
	feedback.RatingTrackingBelow:    "Tracking below expectations",
	feedback.RatingTrackingExpected: "Tracking as expected",
	feedback.RatingTrackingAbove:    "Tracking above expectations",
}

// CycleSummaryPDF renders the printable cycle report from the same counts
// the JSON summary is built from.
func (s *Service) CycleSummaryPDF(cycle cycles.Cycle, participants int, selectionCounts, formCounts, ratingCounts map[string]int) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Cycle Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Cycle: %s", cycle.Name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", cycle.StartDate.Format("2006-01-02"), cycle.EndDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", cycle.Status))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Participants: %d", participants))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Reviewer Selections")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Pending: %d", selectionCounts["pending"]))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Approved: %d", selectionCounts["approved"]))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Sent back: %d", selectionCounts["sent_back"]))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Feedback Forms")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Draft: %d", formCounts["draft"]))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Submitted: %d", formCounts["submitted"]))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Overall Ratings")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 12)
	for _, rating := range feedback.Ratings {
		pdf.Cell(0, 8, fmt.Sprintf("%s: %d", ratingLabels[rating], ratingCounts[rating]))
		pdf.Ln(7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
