package cycleshandler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/cycles"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	DB      *pgxpool.Pool
	Service *cycles.Service
	Perms   middleware.PermissionStore
}

func NewHandler(db *pgxpool.Pool, service *cycles.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{DB: db, Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance-cycles", func(r chi.Router) {
		r.Get("/active", h.handleGetActive)
		r.With(middleware.RequirePermission(auth.PermCyclesManage, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermCyclesManage, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermCyclesManage, h.Perms)).Get("/{cycleID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermCyclesManage, h.Perms)).Put("/{cycleID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermCyclesManage, h.Perms)).Delete("/{cycleID}", h.handleDelete)
	})
}

type cycleRequest struct {
	Name        string `json:"name"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	cycle, err := h.Service.GetActive(r.Context())
	if err != nil {
		api.Fail(w, http.StatusNotFound, "no_active_cycle", "no active performance cycle", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Service.Count(r.Context(), status)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_list_failed", "failed to list cycles", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.List(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_list_failed", "failed to list cycles", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []cycles.Cycle{}
	}

	api.SuccessWithTotal(w, items, total, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cycleID := chi.URLParam(r, "cycleID")
	cycle, err := h.Service.GetByID(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload cycleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Status == "" {
		payload.Status = cycles.StatusInactive
	}

	cycle, ok := h.validateCycle(w, r, payload)
	if !ok {
		return
	}

	id, err := h.Service.Create(r.Context(), cycle)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_create_failed", "failed to create cycle", middleware.GetRequestID(r.Context()))
		return
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "cycle.create", "performance_cycle", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		log.Printf("audit cycle.create failed: %v", err)
	}

	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	cycleID := chi.URLParam(r, "cycleID")
	existing, err := h.Service.GetByID(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return
	}

	var payload cycleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Status == "" {
		payload.Status = existing.Status
	}

	cycle, ok := h.validateCycle(w, r, payload)
	if !ok {
		return
	}

	updated, err := h.Service.Update(r.Context(), cycleID, cycle)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_update_failed", "failed to update cycle", middleware.GetRequestID(r.Context()))
		return
	}
	if !updated {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "cycle.update", "performance_cycle", cycleID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), existing, payload); err != nil {
		log.Printf("audit cycle.update failed: %v", err)
	}

	fresh, err := h.Service.GetByID(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_load_failed", "failed to load cycle", middleware.GetRequestID(r.Context()))
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

	cycleID := chi.URLParam(r, "cycleID")
	existing, err := h.Service.GetByID(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return
	}

	referenced, err := h.Service.IsReferenced(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_delete_failed", "failed to delete cycle", middleware.GetRequestID(r.Context()))
		return
	}
	if referenced {
		api.Fail(w, http.StatusConflict, "cycle_referenced", "cycle is referenced by selections or feedback forms", middleware.GetRequestID(r.Context()))
		return
	}

	deleted, err := h.Service.Delete(r.Context(), cycleID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_delete_failed", "failed to delete cycle", middleware.GetRequestID(r.Context()))
		return
	}
	if !deleted {
		api.Fail(w, http.StatusNotFound, "cycle_not_found", "performance cycle not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := audit.New(h.DB).Record(r.Context(), user.UserID, "cycle.delete", "performance_cycle", cycleID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), existing, nil); err != nil {
		log.Printf("audit cycle.delete failed: %v", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) validateCycle(w http.ResponseWriter, r *http.Request, payload cycleRequest) (cycles.Cycle, bool) {
	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	start, startOK := v.Date("startDate", payload.StartDate)
	end, endOK := v.Date("endDate", payload.EndDate)
	if startOK && endOK {
		v.DateOrder("startDate", start, "endDate", end)
	}
	v.Enum("status", payload.Status, cycles.Statuses, "must be one of active, inactive, completed")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return cycles.Cycle{}, false
	}

	return cycles.Cycle{
		Name:        payload.Name,
		StartDate:   start,
		EndDate:     end,
		Status:      payload.Status,
		Description: payload.Description,
	}, true
}
