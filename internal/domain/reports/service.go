package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/ledger"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
)

var ErrInvalidMonth = errors.New("month must be YYYY-MM")

type Service struct {
	Ledger     *ledger.Service
	Attendance *attendance.Service
	Staff      *staff.Service
	Clock      clock.Clock
	Location   *time.Location
	// Dir receives archived exports; empty disables archiving.
	Dir string
}

func NewService(ledgerSvc *ledger.Service, attendanceSvc *attendance.Service, staffSvc *staff.Service, clk clock.Clock, loc *time.Location, dir string) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{Ledger: ledgerSvc, Attendance: attendanceSvc, Staff: staffSvc, Clock: clk, Location: loc, Dir: dir}
}

// MonthRange returns the first and last calendar day of a YYYY-MM month.
func MonthRange(month string) (string, string, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return "", "", ErrInvalidMonth
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(attendance.DayLayout), end.Format(attendance.DayLayout), nil
}

func (s *Service) LedgerStatementPDF(ctx context.Context, staffID string, w io.Writer) error {
	profile, err := s.Staff.Get(ctx, staffID)
	if err != nil {
		return err
	}
	lines, summary, err := s.Ledger.Statement(ctx, staffID)
	if err != nil {
		return err
	}
	return WriteLedgerPDF(w, profile.Name, summary, lines, s.Clock.Now().In(s.Location))
}

func (s *Service) AttendancePDF(ctx context.Context, month string, w io.Writer) error {
	records, err := s.monthRecords(ctx, month)
	if err != nil {
		return err
	}
	return WriteAttendancePDF(w, "Attendance "+month, records, s.Location)
}

func (s *Service) AttendanceXLSX(ctx context.Context, month string, w io.Writer) error {
	records, err := s.monthRecords(ctx, month)
	if err != nil {
		return err
	}
	return WriteAttendanceXLSX(w, month, records, s.Location)
}

// ArchiveAttendance writes the month's workbook under Dir and returns its path.
func (s *Service) ArchiveAttendance(ctx context.Context, month string) (string, error) {
	if s.Dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("attendance-%s.xlsx", month))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := s.AttendanceXLSX(ctx, month, file); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}

func (s *Service) monthRecords(ctx context.Context, month string) ([]attendance.Record, error) {
	from, to, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	return s.Attendance.History(ctx, "", from, to)
}
