package notificationshandler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/notifications"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
	Audit   *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *notifications.Service, auditSvc *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Put("/read-all", h.handleReadAll)
		r.Put("/{notificationID}/read", h.handleMarkRead)
	})
	r.Route("/admin/notifications", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermNotificationsManage, h.Perms)).Get("/", h.handleAdminList)
		r.With(middleware.RequirePermission(auth.PermNotificationsManage, h.Perms)).Post("/", h.handleAdminCreate)
		r.With(middleware.RequirePermission(auth.PermNotificationsManage, h.Perms)).Delete("/{notificationID}", h.handleAdminDelete)
	})
}

type adminNotificationRequest struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.Count(r.Context(), user.UserID, unreadOnly)
	if err != nil {
		slog.Warn("notification count failed", "err", err)
	}
	items, err := h.Service.List(r.Context(), user.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_list_failed", "failed to list notifications", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

// handleMarkRead is idempotent: marking an already read notification is a
// no-op success.
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	ownerID, err := h.Service.OwnerID(r.Context(), notificationID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "notification_not_found", "notification not found", middleware.GetRequestID(r.Context()))
		return
	}
	if ownerID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.MarkRead(r.Context(), user.UserID, notificationID); err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to mark notification read", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReadAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	updated, err := h.Service.MarkAllRead(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to mark notifications read", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.CountAll(r.Context())
	if err != nil {
		slog.Warn("notification admin count failed", "err", err)
	}
	items, err := h.Service.ListAll(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_list_failed", "failed to list notifications", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload adminNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("userId", payload.UserID, "userId is required")
	v.Required("title", payload.Title, "title is required")
	v.Required("message", payload.Message, "message is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	ntype := payload.Type
	if ntype == "" {
		ntype = notifications.TypeSystem
	}
	if err := h.Service.Create(r.Context(), payload.UserID, ntype, payload.Title, payload.Message); err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_create_failed", "failed to create notification", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "notification.create", "notification", payload.UserID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit notification.create failed", "err", err)
	}
	api.Created(w, map[string]string{"status": "created"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	deleted, err := h.Service.Delete(r.Context(), notificationID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_delete_failed", "failed to delete notification", middleware.GetRequestID(r.Context()))
		return
	}
	if !deleted {
		api.Fail(w, http.StatusNotFound, "notification_not_found", "notification not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "notification.delete", "notification", notificationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit notification.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}
