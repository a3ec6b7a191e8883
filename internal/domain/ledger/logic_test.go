package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC)
}

func baseStreams() ([]ExpenseRecord, []AdvanceLogEntry) {
	expenses := []ExpenseRecord{
		{ID: "e1", StaffID: "s-1", Amount: amount(300), Status: ExpenseApproved, CreatedAt: day(3)},
	}
	advances := []AdvanceLogEntry{
		{ID: "a1", StaffID: "s-1", Amount: amount(1000), Type: AdvanceRegular, Date: day(1)},
		{ID: "a2", StaffID: "s-1", Amount: amount(5000), Type: AdvanceSalary, Date: day(2)},
	}
	return expenses, advances
}

func TestComputeBalance(t *testing.T) {
	expenses, advances := baseStreams()
	got := ComputeBalance("s-1", expenses, advances)
	if !got.Balance.Equal(amount(700)) {
		t.Fatalf("expected balance 700, got %s", got.Balance)
	}
	if !got.RegularAdvanceTotal.Equal(amount(1000)) || !got.SalaryAdvanceTotal.Equal(amount(5000)) || !got.ApprovedExpenseTotal.Equal(amount(300)) {
		t.Fatalf("unexpected totals: %+v", got)
	}

	advances = append(advances, AdvanceLogEntry{ID: "a3", StaffID: "s-1", Amount: amount(-400), Type: AdvanceRegular, Date: day(4)})
	got = ComputeBalance("s-1", expenses, advances)
	if !got.Balance.Equal(amount(300)) {
		t.Fatalf("expected balance 300 after repayment, got %s", got.Balance)
	}
}

func TestComputeBalanceExcludesDeletedAndOtherStaff(t *testing.T) {
	expenses, advances := baseStreams()
	expenses = append(expenses,
		ExpenseRecord{ID: "e2", StaffID: "s-1", Amount: amount(999), Status: ExpenseApproved, IsDeleted: true},
		ExpenseRecord{ID: "e3", StaffID: "s-2", Amount: amount(50), Status: ExpenseApproved},
		ExpenseRecord{ID: "e4", StaffID: "s-1", Amount: amount(70), Status: ExpenseVerified},
	)
	advances = append(advances,
		AdvanceLogEntry{ID: "a4", StaffID: "s-1", Amount: amount(2000), Type: AdvanceRegular, IsDeleted: true},
		AdvanceLogEntry{ID: "a5", StaffID: "s-1", Amount: amount(800), Type: AdvanceSalary, IsDeleted: true},
		AdvanceLogEntry{ID: "a6", StaffID: "s-2", Amount: amount(100), Type: AdvanceRegular},
	)

	got := ComputeBalance("s-1", expenses, advances)
	if !got.Balance.Equal(amount(700)) || !got.SalaryAdvanceTotal.Equal(amount(5000)) {
		t.Fatalf("deleted or foreign entries leaked: %+v", got)
	}
}

func TestComputeBalancePayable(t *testing.T) {
	expenses := []ExpenseRecord{{StaffID: "s-1", Amount: amount(250), Status: ExpenseApproved}}
	got := ComputeBalance("s-1", expenses, nil)
	if !got.Payable() || !got.Balance.Equal(amount(-250)) {
		t.Fatalf("expected payable -250, got %s", got.Balance)
	}
}

func TestComputeBalanceUntypedAdvanceIsRegular(t *testing.T) {
	advances := []AdvanceLogEntry{{StaffID: "s-1", Amount: amount(120)}}
	if got := ComputeBalance("s-1", nil, advances); !got.RegularAdvanceTotal.Equal(amount(120)) {
		t.Fatalf("expected untyped advance counted as regular, got %+v", got)
	}
}

func TestComputeBalanceKeepsCents(t *testing.T) {
	advances := []AdvanceLogEntry{
		{StaffID: "s-1", Amount: decimal.RequireFromString("0.10"), Type: AdvanceRegular},
		{StaffID: "s-1", Amount: decimal.RequireFromString("0.20"), Type: AdvanceRegular},
	}
	if got := ComputeBalance("s-1", nil, advances); !got.Balance.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("expected exact 0.30, got %s", got.Balance)
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		from, action, to string
		ok               bool
	}{
		{ExpensePending, ActionVerify, ExpenseVerified, true},
		{ExpenseVerified, ActionApprove, ExpenseApproved, true},
		{ExpensePending, ActionReject, ExpenseRejected, true},
		{ExpenseVerified, ActionReject, ExpenseRejected, true},
		{ExpenseVerified, ActionUndo, ExpensePending, true},
		{ExpensePending, ActionApprove, ExpensePending, false},
		{ExpenseApproved, ActionReject, ExpenseApproved, false},
		{ExpenseRejected, ActionVerify, ExpenseRejected, false},
		{ExpenseApproved, ActionUndo, ExpenseApproved, false},
		{ExpensePending, "archive", ExpensePending, false},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.action)
		if tc.ok && err != nil {
			t.Fatalf("%s via %s: unexpected error %v", tc.from, tc.action, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s via %s: expected invalid transition, got %v", tc.from, tc.action, err)
		}
		if got != tc.to {
			t.Fatalf("%s via %s: expected %s, got %s", tc.from, tc.action, tc.to, got)
		}
	}
}

func TestStatementRunningBalanceMatchesSummary(t *testing.T) {
	expenses, advances := baseStreams()
	advances = append(advances, AdvanceLogEntry{ID: "a3", StaffID: "s-1", Amount: amount(-400), Type: AdvanceRegular, Date: day(4)})

	lines := Statement("s-1", expenses, advances)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (salary excluded), got %d", len(lines))
	}
	wantKinds := []string{LineAdvance, LineExpense, LineRepayment}
	wantBalances := []int64{1000, 700, 300}
	for i, line := range lines {
		if line.Kind != wantKinds[i] || !line.Balance.Equal(amount(wantBalances[i])) {
			t.Fatalf("line %d: got %s %s", i, line.Kind, line.Balance)
		}
	}
	summary := ComputeBalance("s-1", expenses, advances)
	if !lines[len(lines)-1].Balance.Equal(summary.Balance) {
		t.Fatalf("statement %s differs from balance %s", lines[len(lines)-1].Balance, summary.Balance)
	}
}
