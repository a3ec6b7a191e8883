package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain/geo"
	"opsdesk/internal/platform/clock"
)

// Gate decides check-in and check-out outcomes over a snapshot of existing
// records. It performs no I/O; every method returns a new slice.
type Gate struct {
	Clock clock.Clock
	// OfficeStart is minutes since local midnight.
	OfficeStart int
	Location    *time.Location
}

func NewGate(clk clock.Clock, officeStart int, loc *time.Location) *Gate {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Gate{Clock: clk, OfficeStart: officeStart, Location: loc}
}

type CheckInRequest struct {
	Subject Subject
	Manual  bool
	// Verdict and Position come from the best sample of a sampling session.
	Verdict  *geo.Verdict
	Position *geo.Point
	Reason   string
	// AutoFile commits a late check-in without asking for a reason.
	AutoFile bool
}

type CheckOutRequest struct {
	Force                   bool
	RequireCheckoutLocation bool
	Verdict                 *geo.Verdict
}

type ManualEntry struct {
	Subject  Subject
	Day      string
	Status   string
	Note     string
	CheckIn  *time.Time
	CheckOut *time.Time
}

// ParseTimeOfDay turns "HH:MM" into minutes since midnight.
func ParseTimeOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (g *Gate) Now() time.Time {
	return g.Clock.Now().In(g.Location)
}

func (g *Gate) Today() string {
	return g.Now().Format(DayLayout)
}

// StatusAt is LATE only when t is strictly after the office start minute.
func (g *Gate) StatusAt(t time.Time) string {
	local := t.In(g.Location)
	minutes := local.Hour()*60 + local.Minute()
	if minutes > g.OfficeStart {
		return StatusLate
	}
	return StatusPresent
}

func (g *Gate) CheckIn(records []Record, req CheckInRequest) ([]Record, Record, error) {
	now := g.Now()
	day := now.Format(DayLayout)
	if _, ok := find(records, req.Subject.StaffID, day); ok {
		return records, Record{}, ErrAlreadyCheckedIn
	}

	var snapshot *LocationSnapshot
	if !req.Manual {
		if req.Verdict == nil {
			return records, Record{}, ErrNoVerdict
		}
		if !req.Verdict.IsAllowed {
			return records, Record{}, newOutOfRange(*req.Verdict)
		}
		snapshot = &LocationSnapshot{Address: req.Verdict.TargetName}
		if req.Position != nil {
			snapshot.Lat = req.Position.Lat
			snapshot.Lng = req.Position.Lng
		}
	}

	status := g.StatusAt(now)
	reason := strings.TrimSpace(req.Reason)
	if status == StatusLate && !req.AutoFile && reason == "" {
		return records, Record{}, ErrReasonRequired
	}

	rec := Record{
		ID:              uuid.NewString(),
		StaffID:         req.Subject.StaffID,
		StaffName:       req.Subject.StaffName,
		Date:            day,
		CheckInTime:     &now,
		Status:          status,
		IsManualByAdmin: req.Manual,
		Note:            reason,
		Location:        snapshot,
		CreatedAt:       now,
	}
	return appendRecord(records, rec), rec, nil
}

func (g *Gate) CheckOut(records []Record, recordID string, req CheckOutRequest) ([]Record, Record, error) {
	idx := -1
	for i := range records {
		if records[i].ID == recordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return records, Record{}, ErrRecordNotFound
	}
	rec := records[idx]
	if !rec.CheckedIn() {
		return records, Record{}, ErrNotCheckedIn
	}
	if rec.CheckedOut() {
		return records, Record{}, ErrAlreadyCheckedOut
	}

	if !req.Force && req.RequireCheckoutLocation {
		if req.Verdict == nil {
			return records, Record{}, ErrNoVerdict
		}
		if !req.Verdict.IsAllowed {
			return records, Record{}, newOutOfRange(*req.Verdict)
		}
	}

	now := g.Now()
	rec.CheckOutTime = &now
	out := make([]Record, len(records))
	copy(out, records)
	out[idx] = rec
	return out, rec, nil
}

// FileManual records an administrator's entry for a day. The note is mandatory.
func (g *Gate) FileManual(records []Record, entry ManualEntry) ([]Record, Record, error) {
	if !ValidStatus(entry.Status) {
		return records, Record{}, ErrInvalidStatus
	}
	note := strings.TrimSpace(entry.Note)
	if note == "" {
		return records, Record{}, ErrNoteRequired
	}
	now := g.Now()
	day := entry.Day
	if day == "" {
		day = now.Format(DayLayout)
	}
	if _, err := time.ParseInLocation(DayLayout, day, g.Location); err != nil {
		return records, Record{}, ErrInvalidDay
	}
	if _, ok := find(records, entry.Subject.StaffID, day); ok {
		return records, Record{}, ErrAlreadyCheckedIn
	}

	rec := Record{
		ID:              uuid.NewString(),
		StaffID:         entry.Subject.StaffID,
		StaffName:       entry.Subject.StaffName,
		Date:            day,
		Status:          entry.Status,
		IsManualByAdmin: true,
		Note:            note,
		CreatedAt:       now,
	}
	if entry.Status == StatusPresent || entry.Status == StatusLate {
		checkIn := now
		if entry.CheckIn != nil {
			checkIn = entry.CheckIn.In(g.Location)
		}
		rec.CheckInTime = &checkIn
		if entry.CheckOut != nil {
			checkOut := entry.CheckOut.In(g.Location)
			rec.CheckOutTime = &checkOut
		}
	}
	return appendRecord(records, rec), rec, nil
}

// MarkAbsent adds an ABSENT record for every member without a record on day.
func (g *Gate) MarkAbsent(records []Record, roster []Member, day string) ([]Record, []Record) {
	now := g.Now()
	out := records
	var created []Record
	for _, m := range roster {
		if _, ok := find(out, m.StaffID, day); ok {
			continue
		}
		rec := Record{
			ID:        uuid.NewString(),
			StaffID:   m.StaffID,
			StaffName: m.StaffName,
			Date:      day,
			Status:    StatusAbsent,
			Note:      "auto: no check-in",
			CreatedAt: now,
		}
		out = appendRecord(out, rec)
		created = append(created, rec)
	}
	return out, created
}

// Find returns the staff member's record for day, if any.
func Find(records []Record, staffID, day string) (Record, bool) {
	return find(records, staffID, day)
}

func find(records []Record, staffID, day string) (Record, bool) {
	for _, rec := range records {
		if rec.StaffID == staffID && rec.Date == day {
			return rec, true
		}
	}
	return Record{}, false
}

func appendRecord(records []Record, rec Record) []Record {
	out := make([]Record, len(records), len(records)+1)
	copy(out, records)
	return append(out, rec)
}
