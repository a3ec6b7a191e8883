package attendance

import (
	"context"
	"errors"

	"opsdesk/internal/domain/geo"
)

// OutcomeRecorder counts gate decisions. metrics.Collector satisfies it.
type OutcomeRecorder interface {
	RecordOutcome(action, outcome string)
}

type Service struct {
	Store   StoreAPI
	Gate    *Gate
	Metrics OutcomeRecorder
}

func NewService(store StoreAPI, gate *Gate, metrics OutcomeRecorder) *Service {
	return &Service{Store: store, Gate: gate, Metrics: metrics}
}

func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (Record, error) {
	day := s.Gate.Today()
	records, err := s.Store.ListForStaff(ctx, req.Subject.StaffID, day, day)
	if err != nil {
		return Record{}, err
	}
	_, rec, err := s.Gate.CheckIn(records, req)
	if err != nil {
		s.count("check_in", outcomeOf(err))
		return Record{}, err
	}
	if err := s.Store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			s.count("check_in", outcomeOf(err))
		}
		return Record{}, err
	}
	s.count("check_in", rec.Status)
	return rec, nil
}

func (s *Service) CheckOut(ctx context.Context, subject Subject, recordID string, force bool, verdict *geo.Verdict) (Record, error) {
	rec, err := s.Store.Get(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	req := CheckOutRequest{Force: force, RequireCheckoutLocation: subject.RequireCheckoutLocation, Verdict: verdict}
	_, updated, err := s.Gate.CheckOut([]Record{rec}, recordID, req)
	if err != nil {
		s.count("check_out", outcomeOf(err))
		return Record{}, err
	}
	if err := s.Store.CheckOut(ctx, updated); err != nil {
		if errors.Is(err, ErrAlreadyCheckedOut) {
			s.count("check_out", outcomeOf(err))
		}
		return Record{}, err
	}
	if force {
		s.count("check_out", "forced")
	} else {
		s.count("check_out", "ok")
	}
	return updated, nil
}

func (s *Service) FileManual(ctx context.Context, entry ManualEntry) (Record, error) {
	day := entry.Day
	if day == "" {
		day = s.Gate.Today()
		entry.Day = day
	}
	records, err := s.Store.ListForStaff(ctx, entry.Subject.StaffID, day, day)
	if err != nil {
		return Record{}, err
	}
	_, rec, err := s.Gate.FileManual(records, entry)
	if err != nil {
		return Record{}, err
	}
	if err := s.Store.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	s.count("manual", rec.Status)
	return rec, nil
}

// MarkAbsences files ABSENT for every roster member with no record on day.
// A concurrent check-in that wins the race is left in place.
func (s *Service) MarkAbsences(ctx context.Context, roster []Member, day string) ([]Record, error) {
	if day == "" {
		day = s.Gate.Today()
	}
	records, err := s.Store.ListForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	_, created := s.Gate.MarkAbsent(records, roster, day)
	stored := make([]Record, 0, len(created))
	for _, rec := range created {
		if err := s.Store.Create(ctx, rec); err != nil {
			if errors.Is(err, ErrAlreadyCheckedIn) {
				continue
			}
			return stored, err
		}
		stored = append(stored, rec)
		s.count("absence", StatusAbsent)
	}
	return stored, nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.Store.Get(ctx, id)
}

// History lists records between from and to inclusive; an empty staffID
// lists everyone.
func (s *Service) History(ctx context.Context, staffID, from, to string) ([]Record, error) {
	if staffID == "" {
		return s.Store.ListRange(ctx, from, to)
	}
	return s.Store.ListForStaff(ctx, staffID, from, to)
}

func (s *Service) count(action, outcome string) {
	if s.Metrics != nil {
		s.Metrics.RecordOutcome(action, outcome)
	}
}

func outcomeOf(err error) string {
	var oor *OutOfRangeError
	switch {
	case errors.As(err, &oor):
		return "out_of_range"
	case errors.Is(err, ErrNoVerdict):
		return "no_verdict"
	case errors.Is(err, ErrReasonRequired):
		return "reason_required"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "duplicate"
	case errors.Is(err, ErrAlreadyCheckedOut):
		return "already_checked_out"
	}
	return "error"
}
