package reportshandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/feedback"
	"perfreview/internal/domain/reports"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Cycles  *cycles.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, cycleSvc *cycles.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Cycles: cycleSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/stats", h.handleDashboard)
	r.Route("/reports/cycles/{cycleID}", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/summary", h.handleCycleSummary)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/summary/pdf", h.handleCycleSummaryPDF)
	})
}

// handleDashboard shapes the stats by the caller's role. Count failures are
// logged and rendered as zeros so one bad query does not blank the page.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var stats map[string]any
	switch user.Role {
	case auth.RoleEmployee:
		stats = h.employeeStats(r, user.UserID)
	case auth.RoleMentor:
		stats = h.mentorStats(r, user.UserID)
	case auth.RolePeopleCommittee:
		stats = h.committeeStats(r, user.UserID)
	default:
		stats = h.adminStats(r)
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) employeeStats(r *http.Request, userID string) map[string]any {
	cycle, err := h.Cycles.GetActive(r.Context())
	if err != nil {
		return reports.EmployeeDashboard(0, "")
	}
	status, reviewers, found, err := h.Service.SelectionStatus(r.Context(), userID, cycle.ID)
	if err != nil {
		slog.Warn("selection status lookup failed", "err", err)
		return reports.EmployeeDashboard(0, "")
	}
	if !found {
		return reports.EmployeeDashboard(0, "")
	}
	return reports.EmployeeDashboard(reviewers, status)
}

func (h *Handler) mentorStats(r *http.Request, userID string) map[string]any {
	ctx := r.Context()
	pending, err := h.Service.PendingApprovals(ctx)
	if err != nil {
		slog.Warn("pending approvals count failed", "err", err)
	}
	approvedToday, err := h.Service.ApprovedToday(ctx)
	if err != nil {
		slog.Warn("approved today count failed", "err", err)
	}
	mentees, err := h.Service.MenteesTotal(ctx)
	if err != nil {
		slog.Warn("mentee count failed", "err", err)
	}
	awaiting, err := h.Service.AssignedAwaitingForm(ctx, userID)
	if err != nil {
		slog.Warn("awaiting form count failed", "err", err)
	}
	submitted, err := h.Service.FormsByReviewerAndStatus(ctx, userID, feedback.StatusSubmitted)
	if err != nil {
		slog.Warn("submitted form count failed", "err", err)
	}
	drafts, err := h.Service.FormsByReviewerAndStatus(ctx, userID, feedback.StatusDraft)
	if err != nil {
		slog.Warn("draft form count failed", "err", err)
	}
	return reports.MentorDashboard(pending, approvedToday, mentees, awaiting, submitted, drafts)
}

func (h *Handler) committeeStats(r *http.Request, userID string) map[string]any {
	ctx := r.Context()
	awaiting, err := h.Service.AssignedAwaitingForm(ctx, userID)
	if err != nil {
		slog.Warn("awaiting form count failed", "err", err)
	}
	submitted, err := h.Service.FormsByReviewerAndStatus(ctx, userID, feedback.StatusSubmitted)
	if err != nil {
		slog.Warn("submitted form count failed", "err", err)
	}
	drafts, err := h.Service.FormsByReviewerAndStatus(ctx, userID, feedback.StatusDraft)
	if err != nil {
		slog.Warn("draft form count failed", "err", err)
	}
	return reports.CommitteeDashboard(awaiting, submitted, drafts)
}

func (h *Handler) adminStats(r *http.Request) map[string]any {
	ctx := r.Context()
	totalUsers, err := h.Service.TotalUsers(ctx)
	if err != nil {
		slog.Warn("user count failed", "err", err)
	}
	activeUsers, err := h.Service.ActiveUsers(ctx)
	if err != nil {
		slog.Warn("active user count failed", "err", err)
	}
	activeCycle, err := h.Service.ActiveCycle(ctx)
	if err != nil {
		slog.Warn("active cycle lookup failed", "err", err)
	}
	selectionCounts, err := h.Service.SelectionCounts(ctx)
	if err != nil {
		slog.Warn("selection counts failed", "err", err)
	}
	formCounts, err := h.Service.FormCounts(ctx)
	if err != nil {
		slog.Warn("form counts failed", "err", err)
	}
	return reports.AdminDashboard(totalUsers, activeUsers, activeCycle, selectionCounts, formCounts)
}

func (h *Handler) handleCycleSummary(w http.ResponseWriter, r *http.Request) {
	cycle, participants, selectionCounts, formCounts, ratingCounts, ok := h.loadCycleReport(w, r)
	if !ok {
		return
	}

	summary := reports.CycleSummary(map[string]any{
		"id":        cycle.ID,
		"name":      cycle.Name,
		"startDate": shared.FormatDate(cycle.StartDate),
		"endDate":   shared.FormatDate(cycle.EndDate),
		"status":    cycle.Status,
	}, participants, selectionCounts, formCounts, ratingCounts)
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCycleSummaryPDF(w http.ResponseWriter, r *http.Request) {
	cycle, participants, selectionCounts, formCounts, ratingCounts, ok := h.loadCycleReport(w, r)
	if !ok {
		return
	}

	pdfBytes, err := h.Service.CycleSummaryPDF(*cycle, participants, selectionCounts, formCounts, ratingCounts)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render report", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=cycle-report-%s.pdf", cycle.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdfBytes); err != nil {
		slog.Warn("report write failed", "err", err)
	}
}

// loadCycleReport gathers the counts behind both report renderings. Unlike
// the dashboard these fail loudly: a report with silently missing numbers
// is worse than no report.
func (h *Handler) loadCycleReport(w http.ResponseWriter, r *http.Request) (*cycles.Cycle, int, map[string]int, map[string]int, map[string]int, bool) {
	cycleID := chi.URLParam(r, "cycleID")
	cycle, err := h.Cycles.GetByID(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return nil, 0, nil, nil, nil, false
	}

	participants, err := h.Service.CycleParticipants(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return nil, 0, nil, nil, nil, false
	}
	selectionCounts, err := h.Service.CycleSelectionCounts(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return nil, 0, nil, nil, nil, false
	}
	formCounts, err := h.Service.CycleFormCounts(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return nil, 0, nil, nil, nil, false
	}
	ratingCounts, err := h.Service.CycleRatingDistribution(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return nil, 0, nil, nil, nil, false
	}
	return cycle, participants, selectionCounts, formCounts, ratingCounts, true
}
