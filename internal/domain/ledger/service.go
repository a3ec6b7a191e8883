package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"opsdesk/internal/platform/clock"
)

type Service struct {
	Store StoreAPI
	Clock clock.Clock
}

func NewService(store StoreAPI, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{Store: store, Clock: clk}
}

func (s *Service) SubmitExpense(ctx context.Context, staffID string, amount decimal.Decimal, reason string) (ExpenseRecord, error) {
	if !amount.IsPositive() {
		return ExpenseRecord{}, ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ExpenseRecord{}, ErrReasonRequired
	}
	now := s.Clock.Now().UTC()
	rec := ExpenseRecord{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		Amount:    amount,
		Reason:    reason,
		Status:    ExpensePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SaveExpense(ctx, rec); err != nil {
		return ExpenseRecord{}, err
	}
	return rec, nil
}

// TransitionExpense applies a workflow action and returns the record before
// and after.
func (s *Service) TransitionExpense(ctx context.Context, id, action, actorID string) (ExpenseRecord, ExpenseRecord, error) {
	before, err := s.Store.GetExpense(ctx, id)
	if err != nil {
		return ExpenseRecord{}, ExpenseRecord{}, err
	}
	if before.IsDeleted {
		return before, before, ErrDeleted
	}
	next, err := Transition(before.Status, action)
	if err != nil {
		return before, before, err
	}
	after := before
	after.Status = next
	after.DecidedBy = actorID
	after.UpdatedAt = s.Clock.Now().UTC()
	if err := s.Store.SaveExpense(ctx, after); err != nil {
		return before, before, err
	}
	return before, after, nil
}

func (s *Service) SetExpenseDeleted(ctx context.Context, id string, deleted bool) (ExpenseRecord, error) {
	rec, err := s.Store.GetExpense(ctx, id)
	if err != nil {
		return ExpenseRecord{}, err
	}
	rec.IsDeleted = deleted
	rec.UpdatedAt = s.Clock.Now().UTC()
	if err := s.Store.SaveExpense(ctx, rec); err != nil {
		return ExpenseRecord{}, err
	}
	return rec, nil
}

func (s *Service) GetExpense(ctx context.Context, id string) (ExpenseRecord, error) {
	return s.Store.GetExpense(ctx, id)
}

// GiveAdvance records cash handed to a staff member. in.Amount is the
// positive amount given.
func (s *Service) GiveAdvance(ctx context.Context, in AdvanceInput) (AdvanceLogEntry, error) {
	if !in.Amount.IsPositive() {
		return AdvanceLogEntry{}, ErrInvalidAmount
	}
	return s.recordAdvance(ctx, in, in.Amount)
}

// RepayAdvance records cash returned; it is stored as a negative entry of
// the same type.
func (s *Service) RepayAdvance(ctx context.Context, in AdvanceInput) (AdvanceLogEntry, error) {
	if !in.Amount.IsPositive() {
		return AdvanceLogEntry{}, ErrInvalidAmount
	}
	return s.recordAdvance(ctx, in, in.Amount.Neg())
}

func (s *Service) recordAdvance(ctx context.Context, in AdvanceInput, amount decimal.Decimal) (AdvanceLogEntry, error) {
	kind := in.Type
	if kind == "" {
		kind = AdvanceRegular
	}
	if !ValidAdvanceType(kind) {
		return AdvanceLogEntry{}, ErrInvalidType
	}
	now := s.Clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	entry := AdvanceLogEntry{
		ID:        uuid.NewString(),
		StaffID:   in.StaffID,
		Amount:    amount,
		Note:      strings.TrimSpace(in.Note),
		Date:      date,
		GivenBy:   in.GivenBy,
		Type:      kind,
		CreatedAt: now,
	}
	if err := s.Store.SaveAdvance(ctx, entry); err != nil {
		return AdvanceLogEntry{}, err
	}
	return entry, nil
}

func (s *Service) SetAdvanceDeleted(ctx context.Context, id string, deleted bool) (AdvanceLogEntry, error) {
	entry, err := s.Store.GetAdvance(ctx, id)
	if err != nil {
		return AdvanceLogEntry{}, err
	}
	entry.IsDeleted = deleted
	if err := s.Store.SaveAdvance(ctx, entry); err != nil {
		return AdvanceLogEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListExpenses(ctx context.Context, staffID string, includeDeleted bool) ([]ExpenseRecord, error) {
	rows, err := s.Store.ListExpenses(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return VisibleExpenses(rows, includeDeleted), nil
}

func (s *Service) ListAdvances(ctx context.Context, staffID string, includeDeleted bool) ([]AdvanceLogEntry, error) {
	rows, err := s.Store.ListAdvances(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return VisibleAdvances(rows, includeDeleted), nil
}

func (s *Service) Balance(ctx context.Context, staffID string) (Summary, error) {
	expenses, advances, err := s.streams(ctx, staffID)
	if err != nil {
		return Summary{}, err
	}
	return ComputeBalance(staffID, expenses, advances), nil
}

func (s *Service) Statement(ctx context.Context, staffID string) ([]StatementLine, Summary, error) {
	expenses, advances, err := s.streams(ctx, staffID)
	if err != nil {
		return nil, Summary{}, err
	}
	return Statement(staffID, expenses, advances), ComputeBalance(staffID, expenses, advances), nil
}

func (s *Service) streams(ctx context.Context, staffID string) ([]ExpenseRecord, []AdvanceLogEntry, error) {
	expenses, err := s.Store.ListExpenses(ctx, staffID)
	if err != nil {
		return nil, nil, err
	}
	advances, err := s.Store.ListAdvances(ctx, staffID)
	if err != nil {
		return nil, nil, err
	}
	return expenses, advances, nil
}
