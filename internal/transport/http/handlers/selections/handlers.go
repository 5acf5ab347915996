package selectionshandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/notifications"
	"perfreview/internal/domain/selections"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service     *selections.Service
	Cycles      *cycles.Service
	Notify      *notifications.Service
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
	Perms       middleware.PermissionStore
}

func NewHandler(service *selections.Service, cycleSvc *cycles.Service, notify *notifications.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Cycles: cycleSvc, Notify: notify, Audit: auditSvc, Idempotency: idem, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviewer-selections", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSelectionsSubmit, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermSelectionsSubmit, h.Perms)).Get("/my-selection", h.handleMySelection)
		r.With(middleware.RequirePermission(auth.PermSelectionsSubmit, h.Perms)).Put("/{selectionID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermSelectionsSubmit, h.Perms)).Delete("/{selectionID}", h.handleDelete)
	})
	r.Route("/mentor/approvals", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms)).Get("/pending", h.handleListPending)
		r.With(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms)).Get("/", h.handleListAll)
		r.With(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms)).Get("/{selectionID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms)).Post("/{selectionID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms)).Post("/{selectionID}/send-back", h.handleSendBack)
	})
}

type createSelectionRequest struct {
	PerformanceCycleID string   `json:"performanceCycleId"`
	ReviewerIDs        []string `json:"reviewerIds"`
}

type updateSelectionRequest struct {
	ReviewerIDs []string `json:"reviewerIds"`
	Version     int      `json:"version"`
}

type decisionRequest struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload createSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	// Replay has to run before the duplicate check: after a successful
	// create the selection exists, and a retry would otherwise see 409.
	idempotencyKey := r.Header.Get("Idempotency-Key")
	encoded, _ := json.Marshal(payload)
	requestHash := middleware.RequestHash(encoded)
	if idempotencyKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, "selections.create", idempotencyKey, requestHash)
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
	if len(payload.ReviewerIDs) == 0 {
		v.Add("reviewerIds", "at least one reviewer is required")
	}
	if hasDuplicates(payload.ReviewerIDs) {
		v.Add("reviewerIds", "must not contain duplicates")
	}
	if payload.PerformanceCycleID != "" {
		cycle, err := h.Cycles.GetByID(r.Context(), payload.PerformanceCycleID)
		if err != nil {
			v.Add("performanceCycleId", "must reference an existing cycle")
		} else if cycle.Status != cycles.StatusActive {
			v.Add("performanceCycleId", "cycle is not active")
		}
	}
	if len(payload.ReviewerIDs) > 0 && !hasDuplicates(payload.ReviewerIDs) {
		count, err := h.Service.ActiveReviewerCount(r.Context(), payload.ReviewerIDs)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "selection_create_failed", "failed to verify reviewers", middleware.GetRequestID(r.Context()))
			return
		}
		if count != len(payload.ReviewerIDs) {
			v.Add("reviewerIds", "every reviewer must be an active mentor or committee member")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if _, err := h.Service.GetByMenteeAndCycle(r.Context(), user.UserID, payload.PerformanceCycleID); err == nil {
		api.Fail(w, http.StatusConflict, "selection_exists", "a selection already exists for this cycle", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.Create(r.Context(), payload.PerformanceCycleID, user.UserID, payload.ReviewerIDs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			api.Fail(w, http.StatusConflict, "selection_exists", "a selection already exists for this cycle", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "selection_create_failed", "failed to create selection", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "selection.create", "reviewer_selection", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit selection.create failed", "err", err)
	}

	response := map[string]string{"id": id}
	if idempotencyKey != "" {
		if encodedResp, err := json.Marshal(response); err == nil {
			if err := h.Idempotency.Save(r.Context(), user.UserID, "selections.create", idempotencyKey, requestHash, encodedResp); err != nil {
				slog.Warn("idempotency save failed", "err", err)
			}
		}
	}

	api.Created(w, response, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMySelection(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	cycle, err := h.Cycles.GetActive(r.Context())
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "no selection in the active cycle", middleware.GetRequestID(r.Context()))
		return
	}
	sel, err := h.Service.GetByMenteeAndCycle(r.Context(), user.UserID, cycle.ID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "no selection in the active cycle", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Service.GetDetails(r.Context(), sel.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_load_failed", "failed to load selection", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	selectionID := chi.URLParam(r, "selectionID")
	sel, err := h.Service.GetByID(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "selection not found", middleware.GetRequestID(r.Context()))
		return
	}
	if sel.MenteeID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	var payload updateSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	if sel.Status != selections.StatusPending && sel.Status != selections.StatusSentBack {
		api.Fail(w, http.StatusConflict, "invalid_state", "approved selections cannot be changed", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Version != sel.Version {
		api.Fail(w, http.StatusConflict, "version_conflict", "selection was changed by another request", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	if len(payload.ReviewerIDs) == 0 {
		v.Add("reviewerIds", "at least one reviewer is required")
	}
	if hasDuplicates(payload.ReviewerIDs) {
		v.Add("reviewerIds", "must not contain duplicates")
	}
	if len(payload.ReviewerIDs) > 0 && !hasDuplicates(payload.ReviewerIDs) {
		count, err := h.Service.ActiveReviewerCount(r.Context(), payload.ReviewerIDs)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "selection_update_failed", "failed to verify reviewers", middleware.GetRequestID(r.Context()))
			return
		}
		if count != len(payload.ReviewerIDs) {
			v.Add("reviewerIds", "every reviewer must be an active mentor or committee member")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	updated, err := h.Service.ReplaceReviewers(r.Context(), selectionID, payload.ReviewerIDs, payload.Version)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_update_failed", "failed to update selection", middleware.GetRequestID(r.Context()))
		return
	}
	if !updated {
		api.Fail(w, http.StatusConflict, "version_conflict", "selection was changed by another request", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "selection.update", "reviewer_selection", selectionID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), sel, payload); err != nil {
		slog.Warn("audit selection.update failed", "err", err)
	}

	details, err := h.Service.GetDetails(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_load_failed", "failed to load selection", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	selectionID := chi.URLParam(r, "selectionID")
	sel, err := h.Service.GetByID(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "selection not found", middleware.GetRequestID(r.Context()))
		return
	}
	if sel.MenteeID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	if sel.Status != selections.StatusPending {
		api.Fail(w, http.StatusConflict, "invalid_state", "only pending selections can be withdrawn", middleware.GetRequestID(r.Context()))
		return
	}

	deleted, err := h.Service.DeletePending(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_delete_failed", "failed to delete selection", middleware.GetRequestID(r.Context()))
		return
	}
	if !deleted {
		api.Fail(w, http.StatusConflict, "invalid_state", "only pending selections can be withdrawn", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "selection.delete", "reviewer_selection", selectionID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), sel, nil); err != nil {
		slog.Warn("audit selection.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.Count(r.Context(), selections.StatusPending)
	if err != nil {
		slog.Warn("pending selection count failed", "err", err)
	}
	items, err := h.Service.List(r.Context(), selections.StatusPending, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_list_failed", "failed to list selections", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []selections.Details{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.Count(r.Context(), status)
	if err != nil {
		slog.Warn("selection count failed", "err", err)
	}
	items, err := h.Service.List(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_list_failed", "failed to list selections", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []selections.Details{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	selectionID := chi.URLParam(r, "selectionID")
	details, err := h.Service.GetDetails(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "selection not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, selections.StatusApproved)
}

func (h *Handler) handleSendBack(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, selections.StatusSentBack)
}

// handleDecision resolves a pending selection. The guarded update in the
// store means two concurrent decisions cannot both win; the loser sees the
// row already decided and gets a conflict.
func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, newStatus string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	selectionID := chi.URLParam(r, "selectionID")
	sel, err := h.Service.GetByID(r.Context(), selectionID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "selection_not_found", "selection not found", middleware.GetRequestID(r.Context()))
		return
	}
	if sel.Status != selections.StatusPending {
		api.Fail(w, http.StatusConflict, "invalid_state", "selection is not pending", middleware.GetRequestID(r.Context()))
		return
	}

	var payload decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	if newStatus == selections.StatusSentBack {
		v := shared.NewValidator()
		v.Required("feedback", payload.Feedback, "feedback is required when sending back")
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}
	}

	decided, err := h.Service.Decide(r.Context(), selectionID, newStatus, payload.Feedback)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "selection_decision_failed", "failed to record decision", middleware.GetRequestID(r.Context()))
		return
	}
	if !decided {
		api.Fail(w, http.StatusConflict, "invalid_state", "selection is not pending", middleware.GetRequestID(r.Context()))
		return
	}

	action := "selection.approve"
	if newStatus == selections.StatusSentBack {
		action = "selection.send_back"
	}
	if err := h.Audit.Record(r.Context(), user.UserID, action, "reviewer_selection", selectionID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]string{"status": sel.Status}, map[string]string{"status": newStatus, "feedback": payload.Feedback}); err != nil {
		slog.Warn("audit selection decision failed", "action", action, "err", err)
	}

	if h.Notify != nil {
		title := "Reviewer selection approved"
		body := "Your reviewer selection was approved."
		ntype := notifications.TypeSelectionApproved
		if newStatus == selections.StatusSentBack {
			title = "Reviewer selection sent back"
			body = fmt.Sprintf("Your reviewer selection was sent back: %s", payload.Feedback)
			ntype = notifications.TypeSelectionSentBack
		}
		if err := h.Notify.Create(r.Context(), sel.MenteeID, ntype, title, body); err != nil {
			slog.Warn("selection decision notification failed", "err", err)
		}
	}

	api.Success(w, map[string]string{"status": newStatus}, middleware.GetRequestID(r.Context()))
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
