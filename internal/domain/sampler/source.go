package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opsdesk/internal/domain/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrSignalTimeout    = errors.New("location signal timed out")
	ErrWeakSignal       = errors.New("location signal too weak")
	ErrUnavailable      = errors.New("location unavailable")
	ErrCancelled        = errors.New("sampling cancelled")
	ErrSuperseded       = errors.New("sampling superseded by a newer session")
)

// WatchOptions mirrors the knobs a device location API accepts.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Handler receives updates from a Source subscription. OnClose is optional and
// signals that the source has no further updates.
type Handler struct {
	OnSample func(geo.Sample)
	OnError  func(error)
	OnClose  func()
}

type Subscription interface {
	Cancel()
}

// Source is a device location provider.
type Source interface {
	Current(ctx context.Context, opts WatchOptions) (geo.Sample, error)
	Watch(opts WatchOptions, h Handler) (Subscription, error)
}

// Classify maps a source error onto one of the failure sentinels. Errors that
// are already classified pass through unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrSignalTimeout),
		errors.Is(err, ErrWeakSignal),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrSignalTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// ParseDeviceError maps the error codes reported by browser and mobile
// geolocation APIs to failure sentinels. Unknown codes are generic.
func ParseDeviceError(code string) error {
	switch code {
	case "", "none":
		return nil
	case "permission_denied", "PERMISSION_DENIED", "1":
		return ErrPermissionDenied
	case "position_unavailable", "POSITION_UNAVAILABLE", "2":
		return ErrWeakSignal
	case "timeout", "TIMEOUT", "3":
		return ErrSignalTimeout
	}
	return fmt.Errorf("%w: device reported %q", ErrUnavailable, code)
}
