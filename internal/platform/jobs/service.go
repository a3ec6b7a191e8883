package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/reports"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
)

const (
	JobAbsences = "attendance_absences"
	JobArchive  = "attendance_archive"
)

// Run is one job execution; the returned details are kept with the run.
type Run struct {
	ID          string    `json:"id"`
	Type        string    `json:"jobType"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

type Service struct {
	// DB records job_runs when set; without it runs are kept in memory.
	DB         *pgxpool.Pool
	Attendance *attendance.Service
	Staff      *staff.Service
	Reports    *reports.Service
	Clock      clock.Clock
	// AbsenceInterval is how often the absence sweep runs; zero disables it.
	AbsenceInterval time.Duration

	queue chan job

	mu       sync.Mutex
	recent   []Run
	lastDay  string
	archived map[string]bool
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, attendanceSvc *attendance.Service, staffSvc *staff.Service, reportsSvc *reports.Service, clk clock.Clock, absenceInterval time.Duration) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		DB:              db,
		Attendance:      attendanceSvc,
		Staff:           staffSvc,
		Reports:         reportsSvc,
		Clock:           clk,
		AbsenceInterval: absenceInterval,
		queue:           make(chan job, 128),
		archived:        map[string]bool{},
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.AbsenceInterval > 0 {
		go s.scheduleAbsences(ctx, s.AbsenceInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// MarkAbsences files ABSENT for every active staff member without a record
// on day. An empty day means today.
func (s *Service) MarkAbsences(ctx context.Context, day string) (any, error) {
	return s.RunNow(ctx, JobAbsences, s.absenceJob(day))
}

// Recent returns the in-memory run history, newest last.
func (s *Service) Recent() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *Service) absenceJob(day string) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		if day == "" {
			day = s.Attendance.Gate.Today()
		}
		profiles, err := s.Staff.Roster(ctx)
		if err != nil {
			return nil, err
		}
		roster := make([]attendance.Member, 0, len(profiles))
		for _, p := range profiles {
			roster = append(roster, attendance.Member{StaffID: p.ID, StaffName: p.Name})
		}
		created, err := s.Attendance.MarkAbsences(ctx, roster, day)
		return map[string]any{"day": day, "marked": len(created)}, err
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	run := Run{Type: j.Type, Status: "running", StartedAt: s.Clock.Now()}
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, run.Status).Scan(&run.ID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	run.Status = "completed"
	if err != nil {
		run.Status = "failed"
		slog.Warn("job failed", "jobType", j.Type, "err", err)
	}
	run.Details = details
	run.CompletedAt = s.Clock.Now()

	if s.DB != nil && run.ID != "" {
		detailsJSON, marshalErr := json.Marshal(details)
		if marshalErr != nil {
			slog.Warn("job details marshal failed", "err", marshalErr)
			detailsJSON = []byte("{}")
		}
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, run.Status, detailsJSON, run.ID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	s.remember(run)
	return details, err
}

func (s *Service) remember(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, run)
	if len(s.recent) > 50 {
		s.recent = s.recent[len(s.recent)-50:]
	}
}

// scheduleAbsences sweeps the previous day once the calendar rolls over and
// archives the previous month's workbook on the first sweep of a new month.
func (s *Service) scheduleAbsences(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	now := s.Attendance.Gate.Now()
	today := now.Format(attendance.DayLayout)
	yesterday := now.AddDate(0, 0, -1).Format(attendance.DayLayout)

	s.mu.Lock()
	due := s.lastDay != today
	s.lastDay = today
	prevMonth := now.AddDate(0, 0, -now.Day()).Format("2006-01")
	archive := s.Reports != nil && s.Reports.Dir != "" && !s.archived[prevMonth]
	if archive {
		s.archived[prevMonth] = true
	}
	s.mu.Unlock()

	if due {
		s.Enqueue(JobAbsences, s.absenceJob(yesterday))
	}
	if archive {
		s.Enqueue(JobArchive, func(ctx context.Context) (any, error) {
			path, err := s.Reports.ArchiveAttendance(ctx, prevMonth)
			return map[string]any{"month": prevMonth, "path": path}, err
		})
	}
}
