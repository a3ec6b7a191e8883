package audithandler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/audit"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/transport/http/middleware"
)

func newRouter(t *testing.T) (http.Handler, *audit.Memory) {
	t.Helper()
	events := &audit.Memory{}
	ctx := context.Background()
	_ = events.Record(ctx, "u-admin", "ledger.expense_approve", "expense", "e1", "r1", "10.0.0.1", nil, nil)
	_ = events.Record(ctx, "u1", "attendance.check_in", "attendance", "a1", "r2", "10.0.0.2", nil, map[string]string{"status": "LATE"})
	_ = events.Record(ctx, "u-admin", "ledger.expense_reject", "expense", "e2", "r3", "10.0.0.1", nil, nil)

	r := chi.NewRouter()
	NewHandler(events, auth.StaticPermissions{}).RegisterRoutes(r)
	return r, events
}

func serve(r http.Handler, role, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "u", RoleName: role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListEventsFiltersAndPages(t *testing.T) {
	r, _ := newRouter(t)

	rec := serve(r, auth.RoleAdmin, "/audit/events?entityType=expense&limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data []audit.Event `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].EntityID != "e2" {
		t.Fatalf("expected newest expense event only, got %+v", resp.Data)
	}

	if rec := serve(r, auth.RoleStaff, "/audit/events"); rec.Code != http.StatusForbidden {
		t.Fatalf("staff must not read the audit trail, got %d", rec.Code)
	}
}

func TestExportEventsCSV(t *testing.T) {
	r, _ := newRouter(t)
	rec := serve(r, auth.RoleAdmin, "/audit/events/export?action=attendance.check_in")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected export response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "attendance.check_in" || rows[1][6] != "10.0.0.2" {
		t.Fatalf("unexpected csv rows: %v", rows)
	}
}
