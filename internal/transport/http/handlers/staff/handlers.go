package staffhandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/location"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/transport/http/api"
	"opsdesk/internal/transport/http/middleware"
	"opsdesk/internal/transport/http/shared"
)

type Handler struct {
	Service *staff.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *staff.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/staff", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Post("/", h.handleCreate)
		r.Route("/{staffID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Put("/", h.handleUpdate)
			r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/targets", h.handleTargets)
		})
	})
}

type profilePayload struct {
	UserID      string               `json:"userId"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	Designation string               `json:"designation"`
	Active      *bool                `json:"active"`
	Location    location.StaffConfig `json:"location"`
}

func (p profilePayload) profile(id string) staff.Profile {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return staff.Profile{
		ID:          id,
		UserID:      p.UserID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Designation: p.Designation,
		Active:      active,
		StaffConfig: p.Location,
	}
}

// handleList returns the roster for admins and kiosks; staff only see
// themselves.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	if user.RoleName == auth.RoleStaff {
		profile, err := h.Service.Get(r.Context(), user.StaffID)
		if errors.Is(err, staff.ErrStaffNotFound) {
			api.Success(w, []staff.Profile{}, reqID)
			return
		}
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "staff_list_failed", "failed to list staff", reqID)
			return
		}
		api.Success(w, []staff.Profile{profile}, reqID)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	profiles, err := h.Service.List(r.Context(), activeOnly)
	if err != nil {
		slog.Warn("staff list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "staff_list_failed", "failed to list staff", reqID)
		return
	}
	api.Success(w, profiles, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !user.CanActFor(staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	profile, err := h.Service.Get(r.Context(), staffID)
	if errors.Is(err, staff.ErrStaffNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "staff not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_get_failed", "failed to load staff", reqID)
		return
	}
	api.Success(w, profile, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "staffID"), http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	reqID := middleware.GetRequestID(r.Context())
	var payload profilePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	if payload.Location.Kind != "" && !location.ValidKind(payload.Location.Kind) {
		v.Add("location.workLocation", "must be HEAD_OFFICE, FACTORY, FIELD or CUSTOM")
	}
	for prefix, site := range map[string]*location.Site{
		"location.customLocation.":  payload.Location.Primary,
		"location.customLocation2.": payload.Location.Secondary,
	} {
		if site == nil {
			continue
		}
		v.Coordinates(prefix, site.Lat, site.Lng)
		v.NonNegative(prefix+"radius", site.RadiusMeters)
	}
	if v.Reject(w, reqID) {
		return
	}

	saved, err := h.Service.Save(r.Context(), payload.profile(id))
	switch {
	case errors.Is(err, staff.ErrNameRequired), errors.Is(err, staff.ErrInvalidLocation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
		return
	case err != nil:
		slog.Warn("staff save failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "staff_save_failed", "failed to save staff", reqID)
		return
	}
	if status == http.StatusCreated {
		api.Created(w, saved, reqID)
		return
	}
	api.Success(w, saved, reqID)
}

// handleTargets shows which locations a check-in for this staff member is
// judged against, including any fallback that was applied.
func (h *Handler) handleTargets(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !user.CanActFor(staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	_, res, err := h.Service.Targets(r.Context(), staffID, user.RoleName)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "targets_failed", "failed to resolve locations", reqID)
		return
	}
	api.Success(w, map[string]any{
		"targets":  res.Targets,
		"fallback": string(res.Fallback),
	}, reqID)
}
