package sampler

import (
	"context"
	"sync"
	"time"

	"opsdesk/internal/domain/geo"
)

// Event is one recorded device update: either a sample or an error.
type Event struct {
	Sample *geo.Sample
	Err    error
}

// ReplaySource plays back updates recorded on a device, in order, and then
// closes the stream. It lets the server run the same sampling rules over what
// a phone or kiosk observed.
type ReplaySource struct {
	Events []Event
}

func NewReplaySource(samples []geo.Sample, deviceErr error) *ReplaySource {
	events := make([]Event, 0, len(samples)+1)
	for i := range samples {
		sample := samples[i]
		events = append(events, Event{Sample: &sample})
	}
	if deviceErr != nil {
		events = append(events, Event{Err: deviceErr})
	}
	return &ReplaySource{Events: events}
}

// WithinWindow drops recorded samples stamped more than window after the
// first one. Unstamped samples are kept.
func WithinWindow(samples []geo.Sample, window time.Duration) []geo.Sample {
	if window <= 0 || len(samples) == 0 {
		return samples
	}
	var start time.Time
	out := make([]geo.Sample, 0, len(samples))
	for _, sample := range samples {
		if !sample.Timestamp.IsZero() {
			if start.IsZero() {
				start = sample.Timestamp
			} else if sample.Timestamp.Sub(start) > window {
				continue
			}
		}
		out = append(out, sample)
	}
	return out
}

// Current returns the first recorded sample, or the first recorded error when
// the device never produced a fix.
func (r *ReplaySource) Current(ctx context.Context, _ WatchOptions) (geo.Sample, error) {
	if err := ctx.Err(); err != nil {
		return geo.Sample{}, Classify(err)
	}
	var firstErr error
	for _, evt := range r.Events {
		if evt.Sample != nil {
			return *evt.Sample, nil
		}
		if firstErr == nil {
			firstErr = evt.Err
		}
	}
	if firstErr != nil {
		return geo.Sample{}, Classify(firstErr)
	}
	return geo.Sample{}, ErrSignalTimeout
}

// Watch delivers the recorded events in order. A gap longer than opts.Timeout
// between two stamped samples is replayed as a signal timeout and ends the
// stream there; a device stops reporting once its watch has timed out.
func (r *ReplaySource) Watch(opts WatchOptions, h Handler) (Subscription, error) {
	sub := &replaySubscription{}
	var last time.Time
	for _, evt := range r.Events {
		if sub.cancelled() {
			return sub, nil
		}
		if evt.Sample != nil && !evt.Sample.Timestamp.IsZero() {
			if opts.Timeout > 0 && !last.IsZero() && evt.Sample.Timestamp.Sub(last) > opts.Timeout {
				if h.OnError != nil {
					h.OnError(ErrSignalTimeout)
				}
				break
			}
			last = evt.Sample.Timestamp
		}
		switch {
		case evt.Sample != nil && h.OnSample != nil:
			h.OnSample(*evt.Sample)
		case evt.Err != nil && h.OnError != nil:
			h.OnError(evt.Err)
		}
	}
	if h.OnClose != nil && !sub.cancelled() {
		h.OnClose()
	}
	return sub, nil
}

type replaySubscription struct {
	mu   sync.Mutex
	done bool
}

func (s *replaySubscription) Cancel() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

func (s *replaySubscription) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
