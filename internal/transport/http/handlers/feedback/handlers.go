package feedbackhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/feedback"
	"perfreview/internal/domain/notifications"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service     *feedback.Service
	Cycles      *cycles.Service
	Notify      *notifications.Service
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
	Perms       middleware.PermissionStore
}

func NewHandler(service *feedback.Service, cycleSvc *cycles.Service, notify *notifications.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Cycles: cycleSvc, Notify: notify, Audit: auditSvc, Idempotency: idem, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviewer", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Get("/assignments", h.handleAssignments)
		r.Route("/feedback-forms", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Post("/", h.handleCreate)
			r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Get("/", h.handleListOwn)
			r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Get("/{formID}", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Put("/{formID}", h.handleUpdate)
			r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Delete("/{formID}", h.handleDelete)
		})
	})
	r.Get("/employee/feedback-forms", h.handleEmployeeForms)
	r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/admin/feedback-forms", h.handleAdminList)
}

type createFormRequest struct {
	PerformanceCycleID string `json:"performanceCycleId"`
	EmployeeID         string `json:"employeeId"`
	Strengths          string `json:"strengths"`
	Improvements       string `json:"improvements"`
	OverallRating      string `json:"overallRating"`
}

type updateFormRequest struct {
	Strengths     string `json:"strengths"`
	Improvements  string `json:"improvements"`
	OverallRating string `json:"overallRating"`
	Status        string `json:"status"`
	Version       int    `json:"version"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload createFormRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	encoded, _ := json.Marshal(payload)
	requestHash := middleware.RequestHash(encoded)
	if idempotencyKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, "feedback.create", idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	v := shared.NewValidator()
	v.Required("performanceCycleId", payload.PerformanceCycleID, "performanceCycleId is required")
	v.Required("employeeId", payload.EmployeeID, "employeeId is required")
	if payload.OverallRating != "" {
		v.Enum("overallRating", payload.OverallRating, feedback.Ratings, "must be one of tracking_below, tracking_expected, tracking_above")
	}
	if payload.PerformanceCycleID != "" {
		cycle, err := h.Cycles.GetByID(r.Context(), payload.PerformanceCycleID)
		if err != nil {
			v.Add("performanceCycleId", "must reference an existing cycle")
		} else if cycle.Status != cycles.StatusActive {
			v.Add("performanceCycleId", "cycle is not active")
		}
	}
	if payload.EmployeeID != "" {
		exists, err := h.Service.ActiveUserExists(r.Context(), payload.EmployeeID)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "form_create_failed", "failed to verify employee", middleware.GetRequestID(r.Context()))
			return
		}
		if !exists {
			v.Add("employeeId", "must reference an active user")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	assigned, err := h.Service.IsAssigned(r.Context(), user.UserID, payload.EmployeeID, payload.PerformanceCycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_create_failed", "failed to verify assignment", middleware.GetRequestID(r.Context()))
		return
	}
	if !assigned {
		api.Fail(w, http.StatusForbidden, "not_assigned", "no approved selection names you as reviewer for this employee", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.Create(r.Context(), feedback.Form{
		EmployeeID:         payload.EmployeeID,
		ReviewerID:         user.UserID,
		PerformanceCycleID: payload.PerformanceCycleID,
		Strengths:          payload.Strengths,
		Improvements:       payload.Improvements,
		OverallRating:      payload.OverallRating,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			api.Fail(w, http.StatusConflict, "form_exists", "a form for this employee and cycle already exists", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "form_create_failed", "failed to create feedback form", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "feedback.create", "feedback_form", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]string{"employeeId": payload.EmployeeID, "performanceCycleId": payload.PerformanceCycleID}); err != nil {
		slog.Warn("audit feedback.create failed", "err", err)
	}

	response := map[string]string{"id": id}
	if idempotencyKey != "" {
		if encodedResp, err := json.Marshal(response); err == nil {
			if err := h.Idempotency.Save(r.Context(), user.UserID, "feedback.create", idempotencyKey, requestHash, encodedResp); err != nil {
				slog.Warn("idempotency save failed", "err", err)
			}
		}
	}

	api.Created(w, response, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := feedback.ListFilter{
		Status:     r.URL.Query().Get("status"),
		EmployeeID: r.URL.Query().Get("employeeId"),
	}
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.CountByReviewer(r.Context(), user.UserID, filter)
	if err != nil {
		slog.Warn("feedback count failed", "err", err)
	}
	items, err := h.Service.ListByReviewer(r.Context(), user.UserID, filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_list_failed", "failed to list feedback forms", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []feedback.FormDetails{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	form, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "form_not_found", "feedback form not found", middleware.GetRequestID(r.Context()))
		return
	}
	if form.ReviewerID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, form, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	formID := chi.URLParam(r, "formID")
	form, err := h.Service.GetByID(r.Context(), formID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "form_not_found", "feedback form not found", middleware.GetRequestID(r.Context()))
		return
	}
	if form.ReviewerID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	var payload updateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	if form.Status == feedback.StatusSubmitted {
		api.Fail(w, http.StatusConflict, "form_submitted", "submitted forms cannot be changed", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Version != form.Version {
		api.Fail(w, http.StatusConflict, "version_conflict", "form was changed by another request", middleware.GetRequestID(r.Context()))
		return
	}

	submitting := payload.Status == feedback.StatusSubmitted
	v := shared.NewValidator()
	if payload.Status != "" && payload.Status != feedback.StatusDraft && payload.Status != feedback.StatusSubmitted {
		v.Add("status", "must be draft or submitted")
	}
	if payload.OverallRating != "" {
		v.Enum("overallRating", payload.OverallRating, feedback.Ratings, "must be one of tracking_below, tracking_expected, tracking_above")
	}
	if submitting {
		v.Required("strengths", payload.Strengths, "strengths are required to submit")
		v.Required("improvements", payload.Improvements, "improvements are required to submit")
		v.Required("overallRating", payload.OverallRating, "overallRating is required to submit")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	var updated bool
	if submitting {
		updated, err = h.Service.Submit(r.Context(), formID, payload.Strengths, payload.Improvements, payload.OverallRating, payload.Version)
	} else {
		updated, err = h.Service.Update(r.Context(), formID, payload.Strengths, payload.Improvements, payload.OverallRating, payload.Version)
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_update_failed", "failed to update feedback form", middleware.GetRequestID(r.Context()))
		return
	}
	if !updated {
		api.Fail(w, http.StatusConflict, "version_conflict", "form was changed by another request", middleware.GetRequestID(r.Context()))
		return
	}

	action := "feedback.update"
	if submitting {
		action = "feedback.submit"
	}
	if err := h.Audit.Record(r.Context(), user.UserID, action, "feedback_form", formID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]string{"status": form.Status}, payload); err != nil {
		slog.Warn("audit feedback update failed", "action", action, "err", err)
	}

	if submitting && h.Notify != nil {
		if err := h.Notify.Create(r.Context(), form.EmployeeID, notifications.TypeFeedbackSubmitted, "Feedback received", "A feedback form for your review was submitted."); err != nil {
			slog.Warn("feedback submit notification failed", "err", err)
		}
	}

	fresh, err := h.Service.GetByID(r.Context(), formID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_load_failed", "failed to load feedback form", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, fresh, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	formID := chi.URLParam(r, "formID")
	form, err := h.Service.GetByID(r.Context(), formID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "form_not_found", "feedback form not found", middleware.GetRequestID(r.Context()))
		return
	}
	if form.ReviewerID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	if form.Status != feedback.StatusDraft {
		api.Fail(w, http.StatusConflict, "form_submitted", "submitted forms cannot be deleted", middleware.GetRequestID(r.Context()))
		return
	}

	deleted, err := h.Service.DeleteDraft(r.Context(), formID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_delete_failed", "failed to delete feedback form", middleware.GetRequestID(r.Context()))
		return
	}
	if !deleted {
		api.Fail(w, http.StatusConflict, "form_submitted", "submitted forms cannot be deleted", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "feedback.delete", "feedback_form", formID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), form, nil); err != nil {
		slog.Warn("audit feedback.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	items, err := h.Service.ListAssignments(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "assignment_list_failed", "failed to list assignments", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []feedback.Assignment{}
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

// handleEmployeeForms returns the submitted forms written about the caller.
// Drafts stay private to their reviewer.
func (h *Handler) handleEmployeeForms(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	total, err := h.Service.CountSubmittedForEmployee(r.Context(), user.UserID)
	if err != nil {
		slog.Warn("employee feedback count failed", "err", err)
	}
	items, err := h.Service.ListSubmittedForEmployee(r.Context(), user.UserID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_list_failed", "failed to list feedback forms", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []feedback.FormDetails{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.CountAll(r.Context(), status)
	if err != nil {
		slog.Warn("feedback admin count failed", "err", err)
	}
	items, err := h.Service.ListAll(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_list_failed", "failed to list feedback forms", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []feedback.FormDetails{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}
