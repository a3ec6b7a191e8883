package staff

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"opsdesk/internal/domain/location"
	"opsdesk/internal/platform/clock"
)

type Service struct {
	Store   StoreAPI
	Presets location.Presets
	Clock   clock.Clock
}

func NewService(store StoreAPI, presets location.Presets, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{Store: store, Presets: presets, Clock: clk}
}

func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Profile, error) {
	return s.Store.List(ctx, activeOnly)
}

// Save validates and stores a profile, assigning an id to new ones.
func (s *Service) Save(ctx context.Context, p Profile) (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Profile{}, ErrNameRequired
	}
	if p.Kind == "" {
		p.Kind = location.KindHeadOffice
	}
	if !location.ValidKind(p.Kind) {
		return Profile{}, ErrInvalidLocation
	}
	now := s.Clock.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	} else if existing, err := s.Store.Get(ctx, p.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrStaffNotFound) {
		return Profile{}, err
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.Store.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Targets resolves the candidate locations for staffID under role. A missing
// profile resolves to the head office rather than failing.
func (s *Service) Targets(ctx context.Context, staffID, role string) (*Profile, location.Resolution, error) {
	var cfg *location.StaffConfig
	var profile *Profile
	if staffID != "" {
		p, err := s.Store.Get(ctx, staffID)
		switch {
		case err == nil:
			profile = &p
			cfg = p.Config()
		case !errors.Is(err, ErrStaffNotFound):
			return nil, location.Resolution{}, err
		}
	}
	res := location.Explain(cfg, role, s.Presets)
	if res.Fallback != location.FallbackNone {
		slog.Warn("location fallback", "staffId", staffID, "role", role, "reason", string(res.Fallback), "target", res.Targets[0].Name)
	}
	return profile, res, nil
}

// Roster returns active staff for absence marking.
func (s *Service) Roster(ctx context.Context) ([]Profile, error) {
	return s.Store.List(ctx, true)
}
