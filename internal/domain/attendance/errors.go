package attendance

import (
	"errors"
	"fmt"

	"opsdesk/internal/domain/geo"
)

var (
	ErrNoVerdict         = errors.New("no location verdict available")
	ErrReasonRequired    = errors.New("late check-in requires a reason")
	ErrNoteRequired      = errors.New("manual attendance requires a note")
	ErrAlreadyCheckedIn  = errors.New("attendance already recorded for this day")
	ErrNotCheckedIn      = errors.New("record has no check-in")
	ErrAlreadyCheckedOut = errors.New("already checked out")
	ErrRecordNotFound    = errors.New("attendance record not found")
	ErrInvalidStatus     = errors.New("invalid attendance status")
	ErrInvalidDay        = errors.New("invalid day")
)

// OutOfRangeError is a policy rejection: the best sample was outside every
// allowed target.
type OutOfRangeError struct {
	DistanceMeters float64
	TargetName     string
	AllowedRadius  float64
}

func newOutOfRange(v geo.Verdict) *OutOfRangeError {
	return &OutOfRangeError{DistanceMeters: v.DistanceMeters, TargetName: v.TargetName, AllowedRadius: v.AllowedRadius}
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%.0fm from %s, allowed radius %.0fm", e.DistanceMeters, e.TargetName, e.AllowedRadius)
}
