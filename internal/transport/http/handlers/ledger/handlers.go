package ledgerhandler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"opsdesk/internal/domain/audit"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/ledger"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/transport/http/api"
	"opsdesk/internal/transport/http/middleware"
	"opsdesk/internal/transport/http/shared"
)

const (
	endpointSubmitExpense = "ledger.expenses.submit"
	endpointAdvance       = "ledger.advances.record"
)

type Handler struct {
	Service     *ledger.Service
	Staff       *staff.Service
	Audit       audit.Recorder
	Idempotency middleware.IdempotencyStore
	Perms       middleware.PermissionStore
}

func NewHandler(service *ledger.Service, staffSvc *staff.Service, recorder audit.Recorder, idem middleware.IdempotencyStore, perms middleware.PermissionStore) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Handler{Service: service, Staff: staffSvc, Audit: recorder, Idempotency: idem, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{staffID}/balance", h.handleBalance)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{staffID}/statement", h.handleStatement)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{staffID}/expenses", h.handleListExpenses)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{staffID}/advances", h.handleListAdvances)

		r.With(middleware.RequirePermission(auth.PermLedgerWrite, h.Perms)).Post("/expenses", h.handleSubmitExpense)
		r.With(middleware.RequirePermission(auth.PermLedgerApprove, h.Perms)).Post("/expenses/{expenseID}/{action}", h.handleExpenseAction)

		r.With(middleware.RequirePermission(auth.PermLedgerApprove, h.Perms)).Post("/advances", h.handleRecordAdvance)
		r.With(middleware.RequirePermission(auth.PermLedgerApprove, h.Perms)).Post("/advances/{advanceID}/{action}", h.handleAdvanceAction)
	})
}

type expensePayload struct {
	StaffID string          `json:"staffId"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
}

type advancePayload struct {
	StaffID string          `json:"staffId"`
	Amount  decimal.Decimal `json:"amount"`
	// Direction is "give" (default) or "repay".
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Note      string `json:"note"`
	Date      string `json:"date"`
}

// ownStaff reports whether user may read staffID's ledger.
func ownStaff(user auth.UserContext, staffID string) bool {
	return user.IsAdmin() || (user.StaffID != "" && user.StaffID == staffID)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !ownStaff(user, staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	summary, err := h.Service.Balance(r.Context(), staffID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "ledger_balance_failed", "failed to compute balance", reqID)
		return
	}
	api.Success(w, map[string]any{
		"summary": summary,
		"payable": summary.Payable(),
	}, reqID)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !ownStaff(user, staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	lines, summary, err := h.Service.Statement(r.Context(), staffID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "ledger_statement_failed", "failed to build statement", reqID)
		return
	}
	if lines == nil {
		lines = []ledger.StatementLine{}
	}
	api.Success(w, map[string]any{"lines": lines, "summary": summary}, reqID)
}

func (h *Handler) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !ownStaff(user, staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	rows, err := h.Service.ListExpenses(r.Context(), staffID, includeDeleted(r, user))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "ledger_list_failed", "failed to list expenses", reqID)
		return
	}
	if rows == nil {
		rows = []ledger.ExpenseRecord{}
	}
	api.Success(w, rows, reqID)
}

func (h *Handler) handleListAdvances(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if !ownStaff(user, staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return
	}
	rows, err := h.Service.ListAdvances(r.Context(), staffID, includeDeleted(r, user))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "ledger_list_failed", "failed to list advances", reqID)
		return
	}
	if rows == nil {
		rows = []ledger.AdvanceLogEntry{}
	}
	api.Success(w, rows, reqID)
}

// includeDeleted is the trash view; only administrators see it.
func includeDeleted(r *http.Request, user auth.UserContext) bool {
	return user.IsAdmin() && r.URL.Query().Get("deleted") == "true"
}

func (h *Handler) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload expensePayload
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
	v.Required("reason", payload.Reason, "is required")
	v.PositiveDecimal("amount", payload.Amount)
	if v.Reject(w, reqID) {
		return
	}
	if !ownStaff(user, staffID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to submit for this staff member", reqID)
		return
	}
	if !h.staffExists(w, r, staffID, reqID) {
		return
	}

	key, hash, replayed := h.replay(w, r, user, endpointSubmitExpense, payload)
	if replayed {
		return
	}

	rec, err := h.Service.SubmitExpense(r.Context(), staffID, payload.Amount, payload.Reason)
	if err != nil {
		failLedger(w, err, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "ledger.expense_submit", "expense", rec.ID, reqID, shared.ClientIP(r), nil, rec); err != nil {
		log.Printf("audit ledger.expense_submit failed: %v", err)
	}
	h.remember(r, user, endpointSubmitExpense, key, hash, rec)
	api.Created(w, rec, reqID)
}

func (h *Handler) handleExpenseAction(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "expenseID")
	action := chi.URLParam(r, "action")

	var before, after ledger.ExpenseRecord
	var err error
	switch action {
	case ledger.ActionVerify, ledger.ActionApprove, ledger.ActionReject, ledger.ActionUndo:
		before, after, err = h.Service.TransitionExpense(r.Context(), id, action, user.UserID)
	case "delete", "restore":
		before, err = h.Service.GetExpense(r.Context(), id)
		if err == nil {
			after, err = h.Service.SetExpenseDeleted(r.Context(), id, action == "delete")
		}
	default:
		api.Fail(w, http.StatusNotFound, "not_found", "unknown expense action", reqID)
		return
	}
	if err != nil {
		failLedger(w, err, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "ledger.expense_"+action, "expense", id, reqID, shared.ClientIP(r), before, after); err != nil {
		log.Printf("audit ledger.expense_%s failed: %v", action, err)
	}
	api.Success(w, after, reqID)
}

func (h *Handler) handleRecordAdvance(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload advancePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		failDecode(w, err, reqID)
		return
	}
	payload.Direction = strings.ToLower(strings.TrimSpace(payload.Direction))
	if payload.Direction == "" {
		payload.Direction = "give"
	}
	payload.Type = strings.ToUpper(strings.TrimSpace(payload.Type))

	v := shared.NewValidator()
	v.Required("staffId", payload.StaffID, "is required")
	v.Enum("direction", payload.Direction, []string{"give", "repay"}, "must be give or repay")
	if payload.Type != "" {
		v.Enum("type", payload.Type, []string{ledger.AdvanceRegular, ledger.AdvanceSalary}, "must be REGULAR or SALARY")
	}
	v.PositiveDecimal("amount", payload.Amount)
	var date time.Time
	if payload.Date != "" {
		date, _ = v.Date("date", payload.Date)
	}
	if v.Reject(w, reqID) {
		return
	}
	if !h.staffExists(w, r, payload.StaffID, reqID) {
		return
	}

	key, hash, replayed := h.replay(w, r, user, endpointAdvance, payload)
	if replayed {
		return
	}

	in := ledger.AdvanceInput{
		StaffID: payload.StaffID,
		Amount:  payload.Amount,
		Type:    payload.Type,
		Note:    payload.Note,
		Date:    date,
		GivenBy: user.UserID,
	}
	var entry ledger.AdvanceLogEntry
	var err error
	if payload.Direction == "repay" {
		entry, err = h.Service.RepayAdvance(r.Context(), in)
	} else {
		entry, err = h.Service.GiveAdvance(r.Context(), in)
	}
	if err != nil {
		failLedger(w, err, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "ledger.advance_"+payload.Direction, "advance", entry.ID, reqID, shared.ClientIP(r), nil, entry); err != nil {
		log.Printf("audit ledger.advance_%s failed: %v", payload.Direction, err)
	}
	h.remember(r, user, endpointAdvance, key, hash, entry)
	api.Created(w, entry, reqID)
}

func (h *Handler) handleAdvanceAction(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "advanceID")
	action := chi.URLParam(r, "action")
	if action != "delete" && action != "restore" {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown advance action", reqID)
		return
	}
	entry, err := h.Service.SetAdvanceDeleted(r.Context(), id, action == "delete")
	if err != nil {
		failLedger(w, err, reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "ledger.advance_"+action, "advance", id, reqID, shared.ClientIP(r), nil, entry); err != nil {
		log.Printf("audit ledger.advance_%s failed: %v", action, err)
	}
	api.Success(w, entry, reqID)
}

func (h *Handler) staffExists(w http.ResponseWriter, r *http.Request, staffID, reqID string) bool {
	if h.Staff == nil {
		return true
	}
	_, err := h.Staff.Get(r.Context(), staffID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, staff.ErrStaffNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "staff not found", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "staff_get_failed", "failed to load staff", reqID)
	}
	return false
}

// replay answers a retried request from the idempotency store. It returns the
// key and request hash to remember the fresh response under when the request
// is new.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, user auth.UserContext, endpoint string, payload any) (string, string, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || h.Idempotency == nil {
		return "", "", false
	}
	reqID := middleware.GetRequestID(r.Context())
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("idempotency payload marshal failed: %v", err)
		return "", "", false
	}
	hash := middleware.RequestHash(encoded)
	stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, endpoint, key, hash)
	if errors.Is(err, middleware.ErrIdempotencyConflict) {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", reqID)
		return "", "", true
	}
	if err != nil {
		log.Printf("idempotency check failed: %v", err)
		return key, hash, false
	}
	if found {
		api.Created(w, json.RawMessage(stored), reqID)
		return "", "", true
	}
	return key, hash, false
}

func (h *Handler) remember(r *http.Request, user auth.UserContext, endpoint, key, hash string, response any) {
	if key == "" || h.Idempotency == nil {
		return
	}
	encoded, err := json.Marshal(response)
	if err != nil {
		log.Printf("idempotency response marshal failed: %v", err)
		return
	}
	if err := h.Idempotency.Save(r.Context(), user.UserID, endpoint, key, hash, encoded); err != nil {
		log.Printf("idempotency save failed: %v", err)
	}
}

func failDecode(w http.ResponseWriter, err error, reqID string) {
	if shared.IsBodyTooLarge(err) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request payload too large", reqID)
		return
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
}

func failLedger(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, ledger.ErrExpenseNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "expense not found", reqID)
	case errors.Is(err, ledger.ErrAdvanceNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "advance not found", reqID)
	case errors.Is(err, ledger.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), reqID)
	case errors.Is(err, ledger.ErrDeleted):
		api.Fail(w, http.StatusConflict, "deleted", "entry is deleted; restore it first", reqID)
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidType), errors.Is(err, ledger.ErrReasonRequired):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		log.Printf("ledger operation failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "ledger_failed", "ledger operation failed", reqID)
	}
}
