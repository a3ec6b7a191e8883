package reportshandler

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/reports"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/transport/http/api"
	"opsdesk/internal/transport/http/middleware"
	"opsdesk/internal/transport/http/shared"
)

const (
	contentPDF  = "application/pdf"
	contentXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/dashboard/staff", h.handleStaffDashboard)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard/admin", h.handleAdminDashboard)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/ledger/{staffID}.pdf", h.handleLedgerPDF)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/attendance", h.handleAttendance)
	})
}

func (h *Handler) handleStaffDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	if user.StaffID == "" {
		api.Fail(w, http.StatusForbidden, "forbidden", "no staff profile linked to this account", reqID)
		return
	}
	payload, err := h.Service.StaffView(r.Context(), user.StaffID)
	if err != nil {
		log.Printf("staff dashboard failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "dashboard_failed", "failed to build dashboard", reqID)
		return
	}
	api.Success(w, payload, reqID)
}

func (h *Handler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	payload, err := h.Service.AdminView(r.Context())
	if err != nil {
		log.Printf("admin dashboard failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "dashboard_failed", "failed to build dashboard", reqID)
		return
	}
	api.Success(w, payload, reqID)
}

func (h *Handler) handleLedgerPDF(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !user.IsAdmin() && user.StaffID != staffID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}

	var buf bytes.Buffer
	err := h.Service.LedgerStatementPDF(r.Context(), staffID, &buf)
	if errors.Is(err, staff.ErrStaffNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "staff not found", reqID)
		return
	}
	if err != nil {
		log.Printf("ledger pdf failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render statement", reqID)
		return
	}
	writeFile(w, contentPDF, "ledger-"+staffID+".pdf", buf.Bytes())
}

func (h *Handler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	month := shared.Query(r, "month", h.Service.Attendance.Gate.Now().Format("2006-01"))
	format := strings.ToLower(shared.Query(r, "format", "pdf"))

	var buf bytes.Buffer
	var err error
	var contentType string
	switch format {
	case "pdf":
		contentType = contentPDF
		err = h.Service.AttendancePDF(r.Context(), month, &buf)
	case "xlsx":
		contentType = contentXLSX
		err = h.Service.AttendanceXLSX(r.Context(), month, &buf)
	default:
		api.Fail(w, http.StatusBadRequest, "validation_error", "format must be pdf or xlsx", reqID)
		return
	}
	if errors.Is(err, reports.ErrInvalidMonth) {
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
		return
	}
	if err != nil {
		log.Printf("attendance report failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render attendance report", reqID)
		return
	}
	writeFile(w, contentType, "attendance-"+month+"."+format, buf.Bytes())
}

// writeFile sends a rendered report. Rendering goes to a buffer first so a
// failure can still produce a JSON error.
func writeFile(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Printf("report write failed: %v", err)
	}
}
