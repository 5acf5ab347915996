package usershandler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/users"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	DB      *pgxpool.Pool
	Service *users.Service
	Perms   middleware.PermissionStore
}

func NewHandler(db *pgxpool.Pool, service *users.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{DB: db, Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/me", h.handleGetMe)
		r.Put("/me", h.handleUpdateMe)
		r.Get("/reviewers", h.handleListReviewers)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Post("/", h.handleCreate)
		r.Get("/{userID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Put("/{userID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermUsersDelete, h.Perms)).Delete("/{userID}", h.handleDelete)
	})
}

type profileRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Password   string `json:"password"`
}

type userRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Position   string `json:"position"`
	IsActive   *bool  `json:"isActive"`
	Password   string `json:"password"`
}

func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	profile, err := h.Service.GetByID(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload profileRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	if payload.Password != "" && len(payload.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.Service.UpdateProfile(r.Context(), user.UserID, payload.Name, payload.Department, payload.Position); err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_update_failed", "failed to update profile", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Password != "" {
		hash, err := auth.HashPassword(payload.Password)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "hash_error", "failed to update password", middleware.GetRequestID(r.Context()))
			return
		}
		if err := h.Service.UpdatePassword(r.Context(), user.UserID, hash); err != nil {
			api.Fail(w, http.StatusInternalServerError, "user_update_failed", "failed to update password", middleware.GetRequestID(r.Context()))
			return
		}
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "user.update_profile", "user", user.UserID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		log.Printf("audit user.update_profile failed: %v", err)
	}

	profile, err := h.Service.GetByID(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_load_failed", "failed to load profile", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListReviewers(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	reviewers, err := h.Service.ListReviewers(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reviewer_list_failed", "failed to list reviewers", middleware.GetRequestID(r.Context()))
		return
	}
	if reviewers == nil {
		reviewers = []users.Reviewer{}
	}
	api.Success(w, reviewers, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := users.ListFilter{
		Role:       r.URL.Query().Get("role"),
		Department: r.URL.Query().Get("department"),
	}
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_list_failed", "failed to list users", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_list_failed", "failed to list users", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []users.User{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload userRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	v.Email("email", payload.Email)
	v.Required("name", payload.Name, "name is required")
	v.Required("role", payload.Role, "role is required")
	if payload.Role != "" && !auth.IsValidRole(payload.Role) {
		v.Add("role", "must be a known role")
	}
	if len(payload.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "hash_error", "failed to create user", middleware.GetRequestID(r.Context()))
		return
	}

	active := true
	if payload.IsActive != nil {
		active = *payload.IsActive
	}
	id, err := h.Service.Create(r.Context(), users.User{
		Email:      payload.Email,
		Name:       payload.Name,
		Role:       payload.Role,
		Department: payload.Department,
		Position:   payload.Position,
		IsActive:   active,
	}, hash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			api.Fail(w, http.StatusConflict, "email_taken", "email already in use", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "user_create_failed", "failed to create user", middleware.GetRequestID(r.Context()))
		return
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "user.create", "user", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]string{"email": payload.Email, "role": payload.Role}); err != nil {
		log.Printf("audit user.create failed: %v", err)
	}

	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID != user.UserID {
		allowed, err := h.Perms.HasPermission(r.Context(), user.Role, auth.PermUsersRead)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", middleware.GetRequestID(r.Context()))
			return
		}
		if !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}

	profile, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	userID := chi.URLParam(r, "userID")
	existing, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}

	var payload userRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	v.Required("role", payload.Role, "role is required")
	if payload.Role != "" && !auth.IsValidRole(payload.Role) {
		v.Add("role", "must be a known role")
	}
	if payload.Password != "" && len(payload.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	active := existing.IsActive
	if payload.IsActive != nil {
		active = *payload.IsActive
	}
	updated, err := h.Service.Update(r.Context(), userID, users.User{
		Name:       payload.Name,
		Role:       payload.Role,
		Department: payload.Department,
		Position:   payload.Position,
		IsActive:   active,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_update_failed", "failed to update user", middleware.GetRequestID(r.Context()))
		return
	}
	if !updated {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Password != "" {
		hash, err := auth.HashPassword(payload.Password)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "hash_error", "failed to update password", middleware.GetRequestID(r.Context()))
			return
		}
		if err := h.Service.UpdatePassword(r.Context(), userID, hash); err != nil {
			api.Fail(w, http.StatusInternalServerError, "user_update_failed", "failed to update password", middleware.GetRequestID(r.Context()))
			return
		}
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "user.update", "user", userID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), existing, payload); err != nil {
		log.Printf("audit user.update failed: %v", err)
	}

	profile, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_load_failed", "failed to load user", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

// handleDelete deactivates instead of deleting when the user is referenced
// by workflow rows, so history stays intact.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == user.UserID {
		api.Fail(w, http.StatusUnprocessableEntity, "validation_error", "cannot delete own account", middleware.GetRequestID(r.Context()))
		return
	}

	existing, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}

	referenced, err := h.Service.IsReferenced(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_delete_failed", "failed to delete user", middleware.GetRequestID(r.Context()))
		return
	}

	if referenced {
		if err := h.Service.Deactivate(r.Context(), userID); err != nil {
			api.Fail(w, http.StatusInternalServerError, "user_delete_failed", "failed to deactivate user", middleware.GetRequestID(r.Context()))
			return
		}
		if err := audit.New(h.DB).Record(r.Context(), user.UserID, "user.deactivate", "user", userID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), existing, nil); err != nil {
			log.Printf("audit user.deactivate failed: %v", err)
		}
		api.Success(w, map[string]string{"status": "deactivated"}, middleware.GetRequestID(r.Context()))
		return
	}

	deleted, err := h.Service.Delete(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_delete_failed", "failed to delete user", middleware.GetRequestID(r.Context()))
		return
	}
	if !deleted {
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "user.delete", "user", userID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), existing, nil); err != nil {
		log.Printf("audit user.delete failed: %v", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}
