package reports

import (
	"context"

	"github.com/shopspring/decimal"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/ledger"
)

func StaffDashboard(today *attendance.Record, summary ledger.Summary, pendingExpenses int) map[string]any {
	return map[string]any{
		"today":           today,
		"balance":         summary.Balance,
		"payable":         summary.Payable(),
		"pendingExpenses": pendingExpenses,
	}
}

func AdminDashboard(statusCounts map[string]int, notCheckedIn, pendingExpenses int, cashOut decimal.Decimal) map[string]any {
	return map[string]any{
		"attendance":      statusCounts,
		"notCheckedIn":    notCheckedIn,
		"pendingExpenses": pendingExpenses,
		"cashOutstanding": cashOut,
	}
}

// StaffView is the dashboard for one staff member.
func (s *Service) StaffView(ctx context.Context, staffID string) (map[string]any, error) {
	day := s.Attendance.Gate.Today()
	records, err := s.Attendance.History(ctx, staffID, day, day)
	if err != nil {
		return nil, err
	}
	var today *attendance.Record
	if rec, ok := attendance.Find(records, staffID, day); ok {
		today = &rec
	}
	summary, err := s.Ledger.Balance(ctx, staffID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.Ledger.ListExpenses(ctx, staffID, false)
	if err != nil {
		return nil, err
	}
	return StaffDashboard(today, summary, countOpen(expenses)), nil
}

// AdminView counts today's attendance by status and sums the cash held by
// active staff.
func (s *Service) AdminView(ctx context.Context) (map[string]any, error) {
	day := s.Attendance.Gate.Today()
	records, err := s.Attendance.History(ctx, "", day, day)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, rec := range records {
		counts[rec.Status]++
	}
	roster, err := s.Staff.Roster(ctx)
	if err != nil {
		return nil, err
	}
	notCheckedIn := 0
	pending := 0
	cashOut := decimal.Zero
	for _, p := range roster {
		if _, ok := attendance.Find(records, p.ID, day); !ok {
			notCheckedIn++
		}
		summary, err := s.Ledger.Balance(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if summary.Balance.IsPositive() {
			cashOut = cashOut.Add(summary.Balance)
		}
		expenses, err := s.Ledger.ListExpenses(ctx, p.ID, false)
		if err != nil {
			return nil, err
		}
		pending += countOpen(expenses)
	}
	return AdminDashboard(counts, notCheckedIn, pending, cashOut), nil
}

// countOpen counts expenses still waiting for a decision.
func countOpen(expenses []ledger.ExpenseRecord) int {
	n := 0
	for _, e := range expenses {
		if e.Status == ledger.ExpensePending || e.Status == ledger.ExpenseVerified {
			n++
		}
	}
	return n
}
