package ledger

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid expense transition")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid advance type")
	ErrReasonRequired    = errors.New("expense reason required")
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrAdvanceNotFound   = errors.New("advance not found")
	ErrDeleted           = errors.New("entry is deleted")
)
