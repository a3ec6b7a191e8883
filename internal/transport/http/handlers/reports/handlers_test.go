package reportshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/ledger"
	"opsdesk/internal/domain/reports"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
	"opsdesk/internal/transport/http/middleware"
)

var (
	admin = auth.UserContext{UserID: "u-admin", RoleName: auth.RoleAdmin}
	rahim = auth.UserContext{UserID: "u1", StaffID: "s1", RoleName: auth.RoleStaff}
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	staffSvc := staff.NewService(staff.NewMemoryStore(
		staff.Profile{ID: "s1", Name: "Rahim", Active: true},
		staff.Profile{ID: "s2", Name: "Karim", Active: true},
	), nil, clk)
	ledgerSvc := ledger.NewService(ledger.NewMemoryStore(), clk)
	attendanceSvc := attendance.NewService(attendance.NewMemoryStore(), attendance.NewGate(clk, 9*60, time.UTC), nil)

	if _, err := ledgerSvc.GiveAdvance(ctx, ledger.AdvanceInput{StaffID: "s1", Amount: decimal.NewFromInt(1000)}); err != nil {
		t.Fatalf("give advance: %v", err)
	}
	if _, err := ledgerSvc.SubmitExpense(ctx, "s1", decimal.NewFromInt(50), "tea"); err != nil {
		t.Fatalf("submit expense: %v", err)
	}
	if _, err := attendanceSvc.FileManual(ctx, attendance.ManualEntry{
		Subject: attendance.Subject{StaffID: "s1", StaffName: "Rahim"},
		Status:  attendance.StatusLate,
		Note:    "gate log",
	}); err != nil {
		t.Fatalf("file manual: %v", err)
	}

	svc := reports.NewService(ledgerSvc, attendanceSvc, staffSvc, clk, time.UTC, "")
	r := chi.NewRouter()
	NewHandler(svc, auth.StaticPermissions{}).RegisterRoutes(r)
	return r
}

func get(r http.Handler, user auth.UserContext, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLedgerPDF(t *testing.T) {
	r := newRouter(t)
	rec := get(r, rahim, "/reports/ledger/s1.pdf")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != contentPDF {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
	if rec := get(r, rahim, "/reports/ledger/s2.pdf"); rec.Code != http.StatusForbidden {
		t.Fatalf("staff must not read another statement, got %d", rec.Code)
	}
	if rec := get(r, admin, "/reports/ledger/ghost.pdf"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown staff must 404, got %d", rec.Code)
	}
}

func TestAttendanceExports(t *testing.T) {
	r := newRouter(t)

	rec := get(r, admin, "/reports/attendance?month=2026-03&format=xlsx")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != contentXLSX {
		t.Fatalf("unexpected xlsx response %d", rec.Code)
	}
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	rows, err := book.GetRows("2026-03")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one record, got %d rows", len(rows))
	}

	if rec := get(r, admin, "/reports/attendance"); rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != contentPDF {
		t.Fatalf("default export should be this month's PDF, got %d", rec.Code)
	}
	if rec := get(r, admin, "/reports/attendance?month=March"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month must 400, got %d", rec.Code)
	}
	if rec := get(r, admin, "/reports/attendance?format=csv"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format must 400, got %d", rec.Code)
	}
	if rec := get(r, rahim, "/reports/attendance"); rec.Code != http.StatusForbidden {
		t.Fatalf("staff must not export attendance, got %d", rec.Code)
	}
}

func TestDashboards(t *testing.T) {
	r := newRouter(t)

	rec := get(r, admin, "/reports/dashboard/admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin dashboard: %d", rec.Code)
	}
	var adminResp struct {
		Data struct {
			Attendance      map[string]int  `json:"attendance"`
			NotCheckedIn    int             `json:"notCheckedIn"`
			PendingExpenses int             `json:"pendingExpenses"`
			CashOutstanding decimal.Decimal `json:"cashOutstanding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &adminResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := adminResp.Data
	if d.Attendance[attendance.StatusLate] != 1 || d.NotCheckedIn != 1 || d.PendingExpenses != 1 || d.CashOutstanding.String() != "1000" {
		t.Fatalf("unexpected admin dashboard: %+v", d)
	}

	rec = get(r, rahim, "/reports/dashboard/staff")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"balance":"1000"`)) {
		t.Fatalf("unexpected staff dashboard %d: %s", rec.Code, rec.Body.String())
	}
	if rec := get(r, rahim, "/reports/dashboard/admin"); rec.Code != http.StatusForbidden {
		t.Fatalf("staff must not see the admin dashboard, got %d", rec.Code)
	}
}
