package attendancehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/audit"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/location"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
	"opsdesk/internal/platform/jobs"
	"opsdesk/internal/platform/metrics"
	"opsdesk/internal/transport/http/middleware"
)

var presets = location.Presets{
	location.KindHeadOffice: {Name: "Head Office", Lat: 23.7806, Lng: 90.4193, AllowedRadiusMeters: 150},
	location.KindFactory:    {Name: "Factory", Lat: 23.9, Lng: 90.3, AllowedRadiusMeters: 300},
}

var (
	admin = auth.UserContext{UserID: "u-admin", RoleName: auth.RoleAdmin}
	rahim = auth.UserContext{UserID: "u1", StaffID: "s1", RoleName: auth.RoleStaff}
	karim = auth.UserContext{UserID: "u2", StaffID: "s2", RoleName: auth.RoleStaff}
	kiosk = auth.UserContext{UserID: "u-kiosk", RoleName: auth.RoleKiosk}
)

type env struct {
	router  http.Handler
	store   *attendance.MemoryStore
	audit   *audit.Memory
	metrics *metrics.Collector
}

func newEnv(t *testing.T, hour, minute int) env {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC))
	staffSvc := staff.NewService(staff.NewMemoryStore(
		staff.Profile{ID: "s1", Name: "Rahim", Active: true, StaffConfig: location.StaffConfig{Kind: location.KindHeadOffice}},
		staff.Profile{ID: "s2", Name: "Karim", Active: true, StaffConfig: location.StaffConfig{Kind: location.KindHeadOffice, RequireCheckoutLocation: true}},
		staff.Profile{ID: "s3", Name: "Salma", Active: true, StaffConfig: location.StaffConfig{Kind: location.KindFactory}},
	), presets, clk)
	store := attendance.NewMemoryStore()
	collector := metrics.New()
	svc := attendance.NewService(store, attendance.NewGate(clk, 9*60, time.UTC), collector)
	runner := jobs.New(nil, svc, staffSvc, nil, clk, 0)
	recorder := &audit.Memory{}

	r := chi.NewRouter()
	NewHandler(svc, staffSvc, runner, recorder, auth.StaticPermissions{}, clk, 0, 2*time.Second).RegisterRoutes(r)
	return env{router: r, store: store, audit: recorder, metrics: collector}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (e env) do(t *testing.T, user auth.UserContext, method, path string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	var out response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func samplesAt(lat, lng float64, accuracies ...float64) []map[string]any {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	out := make([]map[string]any, 0, len(accuracies))
	for i, acc := range accuracies {
		out = append(out, map[string]any{
			"lat":       lat,
			"lng":       lng,
			"accuracy":  acc,
			"timestamp": start.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func atDesk(accuracies ...float64) []map[string]any {
	return samplesAt(23.7807, 90.4194, accuracies...)
}

func decodeCheck(t *testing.T, raw json.RawMessage) checkResponse {
	t.Helper()
	var out checkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode check response: %v", err)
	}
	return out
}

func TestCheckInOnTimeKeepsBestSample(t *testing.T) {
	e := newEnv(t, 8, 55)
	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(50, 30, 80, 10)})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", code, resp.Error)
	}
	out := decodeCheck(t, resp.Data)
	if out.Record.Status != attendance.StatusPresent || out.Record.IsManualByAdmin {
		t.Fatalf("unexpected record: %+v", out.Record)
	}
	if out.Sampling.Updates != 4 || out.Sampling.Improvements != 2 || out.Sampling.AccuracyMeters != 10 {
		t.Fatalf("unexpected sampling summary: %+v", out.Sampling)
	}
	if out.Record.Location == nil || out.Record.Location.Address != "Head Office" {
		t.Fatalf("expected location snapshot, got %+v", out.Record.Location)
	}
	if actions := e.audit.Actions(); len(actions) != 1 || actions[0] != "attendance.check_in" {
		t.Fatalf("unexpected audit actions: %v", actions)
	}

	code, resp = e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(10)})
	if code != http.StatusConflict || resp.Error.Code != "already_checked_in" {
		t.Fatalf("expected duplicate rejection, got %d %+v", code, resp.Error)
	}
}

func TestLateCheckInNeedsReason(t *testing.T) {
	e := newEnv(t, 9, 1)
	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(20)})
	if code != http.StatusUnprocessableEntity || resp.Error.Code != "reason_required" {
		t.Fatalf("expected reason_required, got %d %+v", code, resp.Error)
	}
	if records, _ := e.store.ListForDay(context.Background(), "2026-03-02"); len(records) != 0 {
		t.Fatalf("no record should be created, got %d", len(records))
	}

	code, resp = e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(20), "reason": "traffic"})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", code, resp.Error)
	}
	out := decodeCheck(t, resp.Data)
	if out.Record.Status != attendance.StatusLate || out.Record.Note != "traffic" {
		t.Fatalf("unexpected record: %+v", out.Record)
	}
	if e.metrics.Outcome("check_in", "reason_required") != 1 || e.metrics.Outcome("check_in", attendance.StatusLate) != 1 {
		t.Fatalf("unexpected outcomes: %v", e.metrics.Snapshot()["gateOutcomes"])
	}
}

func TestCheckInOutOfRangeReportsDistance(t *testing.T) {
	e := newEnv(t, 8, 30)
	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": samplesAt(23.79, 90.4193, 15)})
	if code != http.StatusUnprocessableEntity || resp.Error.Code != "out_of_range" {
		t.Fatalf("expected out_of_range, got %d %+v", code, resp.Error)
	}
	if resp.Error.Details["targetName"] != "Head Office" || resp.Error.Details["allowedRadius"] != float64(150) {
		t.Fatalf("unexpected details: %v", resp.Error.Details)
	}
	if d, _ := resp.Error.Details["distanceMeters"].(float64); d < 900 || d > 1100 {
		t.Fatalf("unexpected distance: %v", resp.Error.Details["distanceMeters"])
	}
}

func TestCheckInRejectsImpossibleSamples(t *testing.T) {
	e := newEnv(t, 8, 30)
	samples := append(atDesk(20), map[string]any{
		"lat":       400,
		"lng":       -900,
		"accuracy":  -1,
		"timestamp": time.Date(2026, 3, 2, 8, 0, 1, 0, time.UTC),
	})
	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": samples})
	if code != http.StatusBadRequest || resp.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %d %+v", code, resp.Error)
	}
	fields, _ := resp.Error.Details["fields"].([]any)
	got := map[string]bool{}
	for _, f := range fields {
		if issue, ok := f.(map[string]any); ok {
			got[issue["field"].(string)] = true
		}
	}
	for _, want := range []string{"samples[1].lat", "samples[1].lng", "samples[1].accuracy"} {
		if !got[want] {
			t.Fatalf("expected issue for %s, got %v", want, fields)
		}
	}
	if got["samples[0].lat"] || got["samples[0].accuracy"] {
		t.Fatalf("valid sample flagged: %v", fields)
	}
	if records, _ := e.store.ListForDay(context.Background(), "2026-03-02"); len(records) != 0 {
		t.Fatalf("no record should be created, got %d", len(records))
	}

	code, resp = e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(20)})
	if code != http.StatusCreated {
		t.Fatalf("expected the valid fix to check in, got %d %+v", code, resp.Error)
	}
}

func TestCheckInStopsAtStalledUpdates(t *testing.T) {
	e := newEnv(t, 8, 30)
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	samples := []map[string]any{
		{"lat": 23.79, "lng": 90.4193, "accuracy": 40, "timestamp": start},
		{"lat": 23.7807, "lng": 90.4194, "accuracy": 10, "timestamp": start.Add(3 * time.Second)},
	}
	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": samples})
	if code != http.StatusUnprocessableEntity || resp.Error.Code != "out_of_range" {
		t.Fatalf("expected the fix after the stall to be ignored, got %d %+v", code, resp.Error)
	}
}

func TestCheckInSamplingFailures(t *testing.T) {
	e := newEnv(t, 8, 30)
	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"permission denied", map[string]any{"errorCode": "permission_denied"}, "location_permission_denied"},
		{"no samples", map[string]any{}, "location_timeout"},
		{"weak signal", map[string]any{"errorCode": "POSITION_UNAVAILABLE"}, "location_weak_signal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", tc.body)
			if code != http.StatusUnprocessableEntity || resp.Error.Code != tc.want {
				t.Fatalf("expected %s, got %d %+v", tc.want, code, resp.Error)
			}
		})
	}
}

func TestCheckInOnBehalfOfOthers(t *testing.T) {
	e := newEnv(t, 8, 30)
	code, _ := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"staffId": "s2", "samples": atDesk(10)})
	if code != http.StatusForbidden {
		t.Fatalf("expected staff to be blocked from checking in others, got %d", code)
	}

	// Kiosks are judged against the factory when the staff member has no
	// custom site.
	code, resp := e.do(t, kiosk, http.MethodPost, "/attendance/check-in", map[string]any{"staffId": "s3", "samples": samplesAt(23.9001, 90.3001, 12)})
	if code != http.StatusCreated {
		t.Fatalf("expected kiosk check-in, got %d %+v", code, resp.Error)
	}
	if out := decodeCheck(t, resp.Data); out.Record.StaffName != "Salma" || out.Record.Location.Address != "Factory" {
		t.Fatalf("unexpected kiosk record: %+v", out.Record)
	}

	code, _ = e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"manual": true})
	if code != http.StatusForbidden {
		t.Fatalf("expected manual check-in to need manage permission, got %d", code)
	}
	code, resp = e.do(t, admin, http.MethodPost, "/attendance/check-in", map[string]any{"staffId": "s1", "manual": true})
	if code != http.StatusCreated {
		t.Fatalf("expected admin manual check-in, got %d %+v", code, resp.Error)
	}
	if out := decodeCheck(t, resp.Data); !out.Record.IsManualByAdmin || out.Record.Location != nil || out.Sampling != nil {
		t.Fatalf("unexpected manual record: %+v", out)
	}
}

func TestCheckOutRequiresLocationWhenConfigured(t *testing.T) {
	e := newEnv(t, 8, 30)
	_, resp := e.do(t, karim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(10)})
	recordID := decodeCheck(t, resp.Data).Record.ID
	path := "/attendance/" + recordID + "/check-out"

	if code, _ := e.do(t, rahim, http.MethodPost, path, map[string]any{"samples": atDesk(10)}); code != http.StatusForbidden {
		t.Fatalf("expected another staff member to be blocked, got %d", code)
	}
	code, resp := e.do(t, karim, http.MethodPost, path, map[string]any{})
	if code != http.StatusUnprocessableEntity || resp.Error.Code != "location_timeout" {
		t.Fatalf("expected location requirement, got %d %+v", code, resp.Error)
	}
	if code, _ := e.do(t, karim, http.MethodPost, path, map[string]any{"force": true}); code != http.StatusForbidden {
		t.Fatalf("expected force to need manage permission, got %d", code)
	}
	code, resp = e.do(t, karim, http.MethodPost, path, map[string]any{"samples": atDesk(25)})
	if code != http.StatusOK {
		t.Fatalf("expected check-out, got %d %+v", code, resp.Error)
	}
	if out := decodeCheck(t, resp.Data); out.Record.CheckOutTime == nil {
		t.Fatalf("expected check-out time: %+v", out.Record)
	}
	code, resp = e.do(t, admin, http.MethodPost, path, map[string]any{"force": true})
	if code != http.StatusConflict || resp.Error.Code != "already_checked_out" {
		t.Fatalf("expected already_checked_out, got %d %+v", code, resp.Error)
	}
}

func TestCheckOutWithoutLocationRequirement(t *testing.T) {
	e := newEnv(t, 8, 30)
	_, resp := e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(10)})
	recordID := decodeCheck(t, resp.Data).Record.ID

	code, resp := e.do(t, rahim, http.MethodPost, "/attendance/"+recordID+"/check-out", map[string]any{})
	if code != http.StatusOK {
		t.Fatalf("expected check-out without samples, got %d %+v", code, resp.Error)
	}
	if code, _ := e.do(t, rahim, http.MethodPost, "/attendance/missing/check-out", map[string]any{}); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestManualFiling(t *testing.T) {
	e := newEnv(t, 10, 0)
	body := map[string]any{"staffId": "s1", "day": "2026-03-01", "status": "LEAVE", "note": "sick leave approved"}

	if code, _ := e.do(t, rahim, http.MethodPost, "/attendance/manual", body); code != http.StatusForbidden {
		t.Fatalf("expected staff to be forbidden, got %d", code)
	}
	code, resp := e.do(t, admin, http.MethodPost, "/attendance/manual", map[string]any{"staffId": "s1", "status": "LEAVE"})
	if code != http.StatusBadRequest || resp.Error.Code != "validation_error" {
		t.Fatalf("expected note to be required, got %d %+v", code, resp.Error)
	}
	code, resp = e.do(t, admin, http.MethodPost, "/attendance/manual", body)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, resp.Error)
	}
	var rec attendance.Record
	_ = json.Unmarshal(resp.Data, &rec)
	if rec.Status != attendance.StatusLeave || !rec.IsManualByAdmin || rec.Date != "2026-03-01" {
		t.Fatalf("unexpected manual record: %+v", rec)
	}
	if code, _ := e.do(t, admin, http.MethodPost, "/attendance/manual", body); code != http.StatusConflict {
		t.Fatalf("expected duplicate day to conflict, got %d", code)
	}
}

func TestHistoryScopedToCaller(t *testing.T) {
	e := newEnv(t, 8, 30)
	e.do(t, rahim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(10)})
	e.do(t, karim, http.MethodPost, "/attendance/check-in", map[string]any{"samples": atDesk(10)})

	list := func(user auth.UserContext, query string) (int, []attendance.Record) {
		code, resp := e.do(t, user, http.MethodGet, "/attendance"+query, nil)
		var records []attendance.Record
		_ = json.Unmarshal(resp.Data, &records)
		return code, records
	}

	if code, records := list(rahim, ""); code != http.StatusOK || len(records) != 1 || records[0].StaffID != "s1" {
		t.Fatalf("expected own record only, got %d %+v", code, records)
	}
	if code, _ := list(rahim, "?staffId=s2"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for another staff id, got %d", code)
	}
	if code, records := list(admin, "?from=2026-03-01&to=2026-03-02"); code != http.StatusOK || len(records) != 2 {
		t.Fatalf("expected both records for admin, got %d %d", code, len(records))
	}
	if code, _ := list(admin, "?from=2026-03-05&to=2026-03-01"); code != http.StatusBadRequest {
		t.Fatalf("expected reversed range to fail validation, got %d", code)
	}

	code, resp := e.do(t, rahim, http.MethodGet, "/attendance/today", nil)
	if code != http.StatusOK || !bytes.Contains(resp.Data, []byte(`"staffId":"s1"`)) {
		t.Fatalf("unexpected today response %d: %s", code, resp.Data)
	}
}

func TestRunAbsences(t *testing.T) {
	e := newEnv(t, 18, 0)
	e.do(t, admin, http.MethodPost, "/attendance/check-in", map[string]any{"staffId": "s1", "manual": true, "autoFile": true})

	if code, _ := e.do(t, rahim, http.MethodPost, "/attendance/absences/run", nil); code != http.StatusForbidden {
		t.Fatalf("expected staff to be forbidden, got %d", code)
	}
	code, resp := e.do(t, admin, http.MethodPost, "/attendance/absences/run", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp.Error)
	}
	var details map[string]any
	_ = json.Unmarshal(resp.Data, &details)
	if details["marked"] != float64(2) || details["day"] != "2026-03-02" {
		t.Fatalf("unexpected details: %v", details)
	}
	if e.metrics.Outcome("absence", attendance.StatusAbsent) != 2 {
		t.Fatalf("expected two absences counted")
	}
}
