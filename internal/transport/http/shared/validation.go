package shared

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"opsdesk/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field issues for a payload and rejects it in one
// response. The zero value is not usable; call NewValidator.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{issues: make([]ValidationIssue, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

// Field names an element of a list payload, e.g. Field("samples", 2, "lat")
// is "samples[2].lat".
func Field(list string, index int, name string) string {
	return fmt.Sprintf("%s[%d].%s", list, index, name)
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum accepts value when it matches one of allowed ignoring case. Empty
// values pass; pair with Required when the field is mandatory.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for _, candidate := range allowed {
		if strings.EqualFold(value, strings.TrimSpace(candidate)) {
			return
		}
	}
	v.Add(field, reason)
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "must be on or before "+endField)
	v.Add(endField, "must be on or after "+startField)
}

// Coordinates checks a WGS84 position reported by a device or entered for a
// work site. prefix is prepended to the lat and lng field names.
func (v *Validator) Coordinates(prefix string, lat, lng float64) bool {
	ok := true
	if !finite(lat) || lat < -90 || lat > 90 {
		v.Add(prefix+"lat", "must be between -90 and 90")
		ok = false
	}
	if !finite(lng) || lng < -180 || lng > 180 {
		v.Add(prefix+"lng", "must be between -180 and 180")
		ok = false
	}
	return ok
}

// NonNegative rejects negative, NaN and infinite values such as a GPS
// accuracy radius.
func (v *Validator) NonNegative(field string, value float64) bool {
	if !finite(value) || value < 0 {
		v.Add(field, "must be a non-negative number")
		return false
	}
	return true
}

// PositiveDecimal rejects zero and negative money amounts. Direction is
// carried separately so every amount on the wire is positive.
func (v *Validator) PositiveDecimal(field string, amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		v.Add(field, "must be greater than zero")
		return false
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns the collected issues ordered by field then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := append([]ValidationIssue(nil), v.issues...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Reject writes a 400 validation_error when issues were collected and reports
// whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
