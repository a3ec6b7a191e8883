package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeBalance folds both streams for one staff member. Deleted entries
// never count. SALARY advances are totalled separately and stay out of
// Balance, which is regular advances minus approved expenses.
func ComputeBalance(staffID string, expenses []ExpenseRecord, advances []AdvanceLogEntry) Summary {
	out := Summary{
		StaffID:              staffID,
		ApprovedExpenseTotal: decimal.Zero,
		RegularAdvanceTotal:  decimal.Zero,
		SalaryAdvanceTotal:   decimal.Zero,
	}
	for _, exp := range expenses {
		if exp.StaffID != staffID || exp.IsDeleted || exp.Status != ExpenseApproved {
			continue
		}
		out.ApprovedExpenseTotal = out.ApprovedExpenseTotal.Add(exp.Amount)
	}
	for _, adv := range advances {
		if adv.StaffID != staffID || adv.IsDeleted {
			continue
		}
		if adv.IsSalary() {
			out.SalaryAdvanceTotal = out.SalaryAdvanceTotal.Add(adv.Amount)
		} else {
			out.RegularAdvanceTotal = out.RegularAdvanceTotal.Add(adv.Amount)
		}
	}
	out.Balance = out.RegularAdvanceTotal.Sub(out.ApprovedExpenseTotal)
	return out
}

// Transition returns the status an expense moves to under action.
func Transition(from, action string) (string, error) {
	switch action {
	case ActionVerify:
		if from == ExpensePending {
			return ExpenseVerified, nil
		}
	case ActionApprove:
		if from == ExpenseVerified {
			return ExpenseApproved, nil
		}
	case ActionReject:
		if from == ExpensePending || from == ExpenseVerified {
			return ExpenseRejected, nil
		}
	case ActionUndo:
		if from == ExpenseVerified {
			return ExpensePending, nil
		}
	}
	return from, ErrInvalidTransition
}

// Statement lists regular advances and approved expenses in date order with
// a running balance. The last line's Balance equals ComputeBalance's.
func Statement(staffID string, expenses []ExpenseRecord, advances []AdvanceLogEntry) []StatementLine {
	var lines []StatementLine
	for _, adv := range advances {
		if adv.StaffID != staffID || adv.IsDeleted || adv.IsSalary() {
			continue
		}
		kind := LineAdvance
		if adv.Amount.IsNegative() {
			kind = LineRepayment
		}
		lines = append(lines, StatementLine{
			Date:        adv.Date,
			Kind:        kind,
			RefID:       adv.ID,
			Description: adv.Note,
			Amount:      adv.Amount,
		})
	}
	for _, exp := range expenses {
		if exp.StaffID != staffID || exp.IsDeleted || exp.Status != ExpenseApproved {
			continue
		}
		lines = append(lines, StatementLine{
			Date:        exp.CreatedAt,
			Kind:        LineExpense,
			RefID:       exp.ID,
			Description: exp.Reason,
			Amount:      exp.Amount.Neg(),
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Date.Before(lines[j].Date)
	})
	running := decimal.Zero
	for i := range lines {
		running = running.Add(lines[i].Amount)
		lines[i].Balance = running
	}
	return lines
}

// VisibleExpenses drops soft-deleted entries unless includeDeleted is set.
func VisibleExpenses(in []ExpenseRecord, includeDeleted bool) []ExpenseRecord {
	if includeDeleted {
		return in
	}
	out := make([]ExpenseRecord, 0, len(in))
	for _, exp := range in {
		if !exp.IsDeleted {
			out = append(out, exp)
		}
	}
	return out
}

func VisibleAdvances(in []AdvanceLogEntry, includeDeleted bool) []AdvanceLogEntry {
	if includeDeleted {
		return in
	}
	out := make([]AdvanceLogEntry, 0, len(in))
	for _, adv := range in {
		if !adv.IsDeleted {
			out = append(out, adv)
		}
	}
	return out
}

func ValidAdvanceType(t string) bool {
	return t == AdvanceRegular || t == AdvanceSalary
}
