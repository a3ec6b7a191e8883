package attendancehandler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/audit"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/geo"
	"opsdesk/internal/domain/sampler"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
	"opsdesk/internal/transport/http/api"
	"opsdesk/internal/transport/http/middleware"
	"opsdesk/internal/transport/http/shared"
)

// AbsenceRunner files ABSENT records for a day. jobs.Service satisfies it.
type AbsenceRunner interface {
	MarkAbsences(ctx context.Context, day string) (any, error)
}

type Handler struct {
	Service *attendance.Service
	Staff   *staff.Service
	Jobs    AbsenceRunner
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
	Clock   clock.Clock
	// Window bounds how much device time a replayed session may cover.
	Window time.Duration
	// UpdateTimeout is the longest gap between device updates before the
	// replayed stream counts as timed out.
	UpdateTimeout time.Duration
}

func NewHandler(service *attendance.Service, staffSvc *staff.Service, jobs AbsenceRunner, recorder audit.Recorder, perms middleware.PermissionStore, clk clock.Clock, window, updateTimeout time.Duration) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Handler{Service: service, Staff: staffSvc, Jobs: jobs, Audit: recorder, Perms: perms, Clock: clk, Window: window, UpdateTimeout: updateTimeout}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/today", h.handleToday)
		r.With(middleware.RequirePermission(auth.PermAttendanceWrite, h.Perms)).Post("/check-in", h.handleCheckIn)
		r.With(middleware.RequirePermission(auth.PermAttendanceManage, h.Perms)).Post("/manual", h.handleManual)
		r.With(middleware.RequirePermission(auth.PermAttendanceManage, h.Perms)).Post("/absences/run", h.handleRunAbsences)
		r.With(middleware.RequirePermission(auth.PermAttendanceWrite, h.Perms)).Post("/{recordID}/check-out", h.handleCheckOut)
	})
}

type samplePayload struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// locationPayload is what a device observed while the check-in screen was
// open: the raw position updates plus the error code it hit, if any.
type locationPayload struct {
	Samples   []samplePayload `json:"samples"`
	ErrorCode string          `json:"errorCode"`
}

type checkInPayload struct {
	locationPayload
	StaffID  string `json:"staffId"`
	Reason   string `json:"reason"`
	AutoFile bool   `json:"autoFile"`
	Manual   bool   `json:"manual"`
}

type checkOutPayload struct {
	locationPayload
	Force bool `json:"force"`
}

type manualPayload struct {
	StaffID  string     `json:"staffId"`
	Day      string     `json:"day"`
	Status   string     `json:"status"`
	Note     string     `json:"note"`
	CheckIn  *time.Time `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
}

type samplingSummary struct {
	Updates        int          `json:"updates"`
	Improvements   int          `json:"improvements"`
	AccuracyMeters float64      `json:"accuracy,omitempty"`
	Verdict        *geo.Verdict `json:"verdict,omitempty"`
}

type checkResponse struct {
	Record   attendance.Record `json:"record"`
	Sampling *samplingSummary  `json:"sampling,omitempty"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload checkInPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		failDecode(w, err, reqID)
		return
	}
	staffID := strings.TrimSpace(payload.StaffID)
	if staffID == "" {
		staffID = user.StaffID
	}
	v := shared.NewValidator()
	v.Required("staffId", staffID, "is required")
	if !payload.Manual {
		validateSamples(v, payload.Samples)
	}
	if v.Reject(w, reqID) {
		return
	}
	if !user.CanActFor(staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to check in for this staff member", reqID)
		return
	}
	if payload.Manual {
		if !middleware.Can(r, h.Perms, auth.PermAttendanceManage) {
			api.Fail(w, http.StatusForbidden, "forbidden", "manual check-in requires attendance.manage", reqID)
			return
		}
	}

	profile, res, err := h.Staff.Targets(r.Context(), staffID, user.RoleName)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "targets_failed", "failed to resolve locations", reqID)
		return
	}
	subject := attendance.Subject{StaffID: staffID, StaffName: staffID}
	if profile != nil {
		subject.StaffName = profile.Name
		subject.RequireCheckoutLocation = profile.RequireCheckoutLocation
	}

	req := attendance.CheckInRequest{
		Subject:  subject,
		Manual:   payload.Manual,
		Reason:   payload.Reason,
		AutoFile: payload.AutoFile,
	}
	var summary *samplingSummary
	if !payload.Manual {
		result := h.sample(r, payload.locationPayload, res.Targets)
		summary = summarize(result)
		if result.Verdict == nil {
			failSampling(w, result.Err, reqID)
			return
		}
		req.Verdict = result.Verdict
		req.Position = &result.Best.Point
	}

	rec, err := h.Service.CheckIn(r.Context(), req)
	if err != nil {
		failGate(w, err, summary, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "attendance.check_in", "attendance", rec.ID, reqID, shared.ClientIP(r), nil, rec); err != nil {
		log.Printf("audit attendance.check_in failed: %v", err)
	}
	api.Created(w, checkResponse{Record: rec, Sampling: summary}, reqID)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	recordID := chi.URLParam(r, "recordID")

	var payload checkOutPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		failDecode(w, err, reqID)
		return
	}
	if !payload.Force {
		v := shared.NewValidator()
		validateSamples(v, payload.Samples)
		if v.Reject(w, reqID) {
			return
		}
	}

	existing, err := h.Service.Get(r.Context(), recordID)
	if errors.Is(err, attendance.ErrRecordNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "attendance record not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_get_failed", "failed to load record", reqID)
		return
	}
	if !user.CanActFor(existing.StaffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	if payload.Force {
		if !middleware.Can(r, h.Perms, auth.PermAttendanceManage) {
			api.Fail(w, http.StatusForbidden, "forbidden", "forced check-out requires attendance.manage", reqID)
			return
		}
	}

	profile, res, err := h.Staff.Targets(r.Context(), existing.StaffID, user.RoleName)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "targets_failed", "failed to resolve locations", reqID)
		return
	}
	subject := attendance.Subject{StaffID: existing.StaffID, StaffName: existing.StaffName}
	if profile != nil {
		subject.RequireCheckoutLocation = profile.RequireCheckoutLocation
	}

	var verdict *geo.Verdict
	var summary *samplingSummary
	if !payload.Force && subject.RequireCheckoutLocation {
		result := h.sample(r, payload.locationPayload, res.Targets)
		summary = summarize(result)
		if result.Verdict == nil {
			failSampling(w, result.Err, reqID)
			return
		}
		verdict = result.Verdict
	}

	rec, err := h.Service.CheckOut(r.Context(), subject, recordID, payload.Force, verdict)
	if err != nil {
		failGate(w, err, summary, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "attendance.check_out", "attendance", rec.ID, reqID, shared.ClientIP(r), existing, rec); err != nil {
		log.Printf("audit attendance.check_out failed: %v", err)
	}
	api.Success(w, checkResponse{Record: rec, Sampling: summary}, reqID)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload manualPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		failDecode(w, err, reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("staffId", payload.StaffID, "is required")
	v.Required("note", payload.Note, "is required")
	v.Enum("status", payload.Status, []string{attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent, attendance.StatusLeave}, "must be PRESENT, LATE, ABSENT or LEAVE")
	v.Required("status", payload.Status, "is required")
	if payload.Day != "" {
		v.Date("day", payload.Day)
	}
	if v.Reject(w, reqID) {
		return
	}

	subject := attendance.Subject{StaffID: payload.StaffID, StaffName: payload.StaffID}
	if profile, err := h.Staff.Get(r.Context(), payload.StaffID); err == nil {
		subject.StaffName = profile.Name
	} else if errors.Is(err, staff.ErrStaffNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "staff not found", reqID)
		return
	} else {
		api.Fail(w, http.StatusInternalServerError, "staff_get_failed", "failed to load staff", reqID)
		return
	}

	rec, err := h.Service.FileManual(r.Context(), attendance.ManualEntry{
		Subject:  subject,
		Day:      payload.Day,
		Status:   strings.ToUpper(strings.TrimSpace(payload.Status)),
		Note:     payload.Note,
		CheckIn:  payload.CheckIn,
		CheckOut: payload.CheckOut,
	})
	if err != nil {
		failGate(w, err, nil, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "attendance.manual", "attendance", rec.ID, reqID, shared.ClientIP(r), nil, rec); err != nil {
		log.Printf("audit attendance.manual failed: %v", err)
	}
	api.Created(w, rec, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	from := shared.Query(r, "from", h.Service.Gate.Today())
	to := shared.Query(r, "to", from)
	v := shared.NewValidator()
	start, _ := v.Date("from", from)
	end, _ := v.Date("to", to)
	v.DateOrder("from", start, "to", end)
	if v.Reject(w, reqID) {
		return
	}

	staffID := shared.Query(r, "staffId", "")
	if !user.IsAdmin() {
		if staffID != "" && staffID != user.StaffID {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
			return
		}
		staffID = user.StaffID
		if staffID == "" {
			api.Success(w, []attendance.Record{}, reqID)
			return
		}
	}

	records, err := h.Service.History(r.Context(), staffID, from, to)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to list attendance", reqID)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := r.URL.Query().Get("staffId")
	if staffID == "" {
		staffID = user.StaffID
	}
	if !user.CanActFor(staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	today := h.Service.Gate.Today()
	records, err := h.Service.History(r.Context(), staffID, today, today)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to load attendance", reqID)
		return
	}
	rec, ok := attendance.Find(records, staffID, today)
	if !ok {
		api.Success(w, map[string]any{"day": today, "record": nil}, reqID)
		return
	}
	api.Success(w, map[string]any{"day": today, "record": rec}, reqID)
}

type absencePayload struct {
	Day string `json:"day"`
}

func (h *Handler) handleRunAbsences(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload absencePayload
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &payload); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
			failDecode(w, err, reqID)
			return
		}
	}
	if payload.Day != "" {
		v := shared.NewValidator()
		v.Date("day", payload.Day)
		if v.Reject(w, reqID) {
			return
		}
	}

	details, err := h.Jobs.MarkAbsences(r.Context(), payload.Day)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "absence_run_failed", "failed to mark absences", reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "attendance.absences_run", "job", "attendance_absences", reqID, shared.ClientIP(r), nil, details); err != nil {
		log.Printf("audit attendance.absences_run failed: %v", err)
	}
	api.Success(w, details, reqID)
}

// validateSamples rejects positions no receiver can report. A negative
// accuracy would otherwise always win best-sample selection.
func validateSamples(v *shared.Validator, samples []samplePayload) {
	for i, s := range samples {
		v.Coordinates(shared.Field("samples", i, ""), s.Lat, s.Lng)
		v.NonNegative(shared.Field("samples", i, "accuracy"), s.Accuracy)
	}
}

// sample replays the device updates through a fresh sampler so best-sample
// selection and the window budget are decided here, not on the device.
func (h *Handler) sample(r *http.Request, payload locationPayload, targets []geo.Target) sampler.Result {
	samples := make([]geo.Sample, 0, len(payload.Samples))
	for _, s := range payload.Samples {
		samples = append(samples, geo.Sample{
			Point:          geo.Point{Lat: s.Lat, Lng: s.Lng},
			AccuracyMeters: s.Accuracy,
			Timestamp:      s.Timestamp,
		})
	}
	s := sampler.New(nil, h.Clock)
	if h.Window > 0 {
		s.Window = h.Window
	}
	if h.UpdateTimeout > 0 {
		s.UpdateTimeout = h.UpdateTimeout
	}
	s.Source = sampler.NewReplaySource(sampler.WithinWindow(samples, s.Window), sampler.ParseDeviceError(payload.ErrorCode))
	return sampler.Collect(r.Context(), s, targets, nil, true)
}

func summarize(result sampler.Result) *samplingSummary {
	summary := &samplingSummary{
		Updates:      result.Updates,
		Improvements: result.Improvements,
		Verdict:      result.Verdict,
	}
	if result.Best != nil {
		summary.AccuracyMeters = result.Best.AccuracyMeters
	}
	return summary
}

func failDecode(w http.ResponseWriter, err error, reqID string) {
	if shared.IsBodyTooLarge(err) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request payload too large", reqID)
		return
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
}

func failSampling(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, sampler.ErrPermissionDenied):
		api.Fail(w, http.StatusUnprocessableEntity, "location_permission_denied", "location permission denied; enable location access and retry", reqID)
	case errors.Is(err, sampler.ErrSignalTimeout):
		api.Fail(w, http.StatusUnprocessableEntity, "location_timeout", "no location fix in time; retry outdoors or near a window", reqID)
	case errors.Is(err, sampler.ErrWeakSignal):
		api.Fail(w, http.StatusUnprocessableEntity, "location_weak_signal", "location signal too weak; retry", reqID)
	default:
		api.Fail(w, http.StatusUnprocessableEntity, "no_verdict", "no usable location sample; retry", reqID)
	}
}

func failGate(w http.ResponseWriter, err error, summary *samplingSummary, reqID string) {
	var oor *attendance.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "out_of_range", "you are outside the allowed area", map[string]any{
			"distanceMeters": oor.DistanceMeters,
			"targetName":     oor.TargetName,
			"allowedRadius":  oor.AllowedRadius,
		}, reqID)
	case errors.Is(err, attendance.ErrReasonRequired):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "reason_required", "late check-in requires a reason", map[string]any{
			"status":   attendance.StatusLate,
			"sampling": summary,
		}, reqID)
	case errors.Is(err, attendance.ErrNoVerdict):
		api.Fail(w, http.StatusUnprocessableEntity, "no_verdict", "no usable location sample; retry", reqID)
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		api.Fail(w, http.StatusConflict, "already_checked_in", "attendance already recorded for this day", reqID)
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		api.Fail(w, http.StatusConflict, "already_checked_out", "already checked out", reqID)
	case errors.Is(err, attendance.ErrNotCheckedIn):
		api.Fail(w, http.StatusConflict, "not_checked_in", "record has no check-in", reqID)
	case errors.Is(err, attendance.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "attendance record not found", reqID)
	case errors.Is(err, attendance.ErrNoteRequired), errors.Is(err, attendance.ErrInvalidStatus), errors.Is(err, attendance.ErrInvalidDay):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		log.Printf("attendance operation failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "attendance_failed", "attendance operation failed", reqID)
	}
}
