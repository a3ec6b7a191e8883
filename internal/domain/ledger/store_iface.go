package ledger

import "context"

// StoreAPI returns entries including soft-deleted ones; filtering is the
// caller's concern. An empty staffID lists every staff member.
type StoreAPI interface {
	ListExpenses(ctx context.Context, staffID string) ([]ExpenseRecord, error)
	GetExpense(ctx context.Context, id string) (ExpenseRecord, error)
	SaveExpense(ctx context.Context, rec ExpenseRecord) error
	ListAdvances(ctx context.Context, staffID string) ([]AdvanceLogEntry, error)
	GetAdvance(ctx context.Context, id string) (AdvanceLogEntry, error)
	SaveAdvance(ctx context.Context, entry AdvanceLogEntry) error
}
