package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AdvanceRegular = "REGULAR"
	AdvanceSalary  = "SALARY"
)

const (
	ExpensePending  = "PENDING"
	ExpenseVerified = "VERIFIED"
	ExpenseApproved = "APPROVED"
	ExpenseRejected = "REJECTED"
)

const (
	ActionVerify  = "verify"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionUndo    = "undo"
)

// AdvanceLogEntry is one movement of cash to or from a staff member. Positive
// amounts are advances given, negative amounts are repayments.
type AdvanceLogEntry struct {
	ID        string          `json:"id"`
	StaffID   string          `json:"staffId"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	Date      time.Time       `json:"date"`
	GivenBy   string          `json:"givenBy,omitempty"`
	Type      string          `json:"type"`
	IsDeleted bool            `json:"isDeleted"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (e AdvanceLogEntry) IsSalary() bool {
	return e.Type == AdvanceSalary
}

type ExpenseRecord struct {
	ID        string          `json:"id"`
	StaffID   string          `json:"staffId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Status    string          `json:"status"`
	IsDeleted bool            `json:"isDeleted"`
	DecidedBy string          `json:"decidedBy,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is the derived balance view for one staff member. A negative
// Balance means the staff member owes the company.
type Summary struct {
	StaffID              string          `json:"staffId"`
	ApprovedExpenseTotal decimal.Decimal `json:"approvedExpenseTotal"`
	RegularAdvanceTotal  decimal.Decimal `json:"regularAdvanceTotal"`
	SalaryAdvanceTotal   decimal.Decimal `json:"salaryAdvanceTotal"`
	Balance              decimal.Decimal `json:"balance"`
}

func (s Summary) Payable() bool {
	return s.Balance.IsNegative()
}

type StatementLine struct {
	Date        time.Time       `json:"date"`
	Kind        string          `json:"kind"`
	RefID       string          `json:"refId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
}

const (
	LineAdvance   = "ADVANCE"
	LineRepayment = "REPAYMENT"
	LineExpense   = "EXPENSE"
)

type AdvanceInput struct {
	StaffID string
	Amount  decimal.Decimal
	Type    string
	Note    string
	Date    time.Time
	GivenBy string
}
