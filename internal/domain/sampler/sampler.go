package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"opsdesk/internal/domain/geo"
	"opsdesk/internal/platform/clock"
)

const (
	DefaultWindow        = 5000 * time.Millisecond
	DefaultUpdateTimeout = 15000 * time.Millisecond
)

type State int

const (
	StateIdle State = iota
	StateSampling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateDone:
		return "done"
	}
	return "idle"
}

type Options struct {
	// Silent suppresses OnFailure. The result still carries the error.
	Silent    bool
	OnFailure func(error)
	OnDone    func(Result)
}

// Result is the outcome of one sampling session. Err is set only when no
// sample was accepted. Improvements counts samples that replaced an earlier
// best; the first accepted sample is not an improvement.
type Result struct {
	Best         *geo.Sample
	Verdict      *geo.Verdict
	Err          error
	Updates      int
	Improvements int
	StartedAt    time.Time
	EndedAt      time.Time
}

type Sampler struct {
	Source        Source
	Clock         clock.Clock
	Window        time.Duration
	UpdateTimeout time.Duration

	mu      sync.Mutex
	current *session
}

type session struct {
	targets  []geo.Target
	onBest   func(geo.Verdict)
	opts     Options
	sub      Subscription
	timer    clock.Timer
	result   Result
	lastErr  error
	reported bool
	done     bool
}

func New(source Source, clk clock.Clock) *Sampler {
	if clk == nil {
		clk = clock.System()
	}
	return &Sampler{
		Source:        source,
		Clock:         clk,
		Window:        DefaultWindow,
		UpdateTimeout: DefaultUpdateTimeout,
	}
}

// State reports the sampler state and the latest (possibly partial) result.
func (s *Sampler) State() (State, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return StateIdle, Result{}
	}
	if s.current.done {
		return StateDone, s.current.result
	}
	return StateSampling, s.current.result
}

// Begin starts a sampling session that lasts at most Window. Any in-flight
// session is superseded and its callbacks are dropped from then on. onBest
// fires each time a strictly more accurate sample arrives; the first accepted
// sample always emits a verdict even though it is not counted as an
// improvement.
func (s *Sampler) Begin(targets []geo.Target, onBest func(geo.Verdict), opts Options) (cancel func()) {
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}

	sess := &session{
		targets: append([]geo.Target(nil), targets...),
		onBest:  onBest,
		opts:    opts,
	}

	s.mu.Lock()
	var after []func()
	if prev := s.current; prev != nil && !prev.done {
		after = s.finishLocked(prev, ErrSuperseded, false)
	}
	s.current = sess
	sess.result.StartedAt = s.Clock.Now()
	sess.timer = s.Clock.AfterFunc(window, func() { s.expire(sess) })
	s.mu.Unlock()
	run(after)

	sub, err := s.Source.Watch(WatchOptions{
		HighAccuracy: true,
		Timeout:      s.updateTimeout(),
		MaximumAge:   0,
	}, Handler{
		OnSample: func(sample geo.Sample) { s.accept(sess, sample) },
		OnError:  func(err error) { s.streamError(sess, err) },
		OnClose:  func() { s.closed(sess) },
	})

	s.mu.Lock()
	after = nil
	switch {
	case err != nil:
		if sess == s.current && !sess.done {
			after = s.failLocked(sess, err)
			if !sess.done {
				after = append(after, s.finishLocked(sess, nil, true)...)
			}
		}
	case sess.done:
		after = append(after, sub.Cancel)
	default:
		sess.sub = sub
	}
	s.mu.Unlock()
	run(after)

	return func() { s.cancel(sess) }
}

func (s *Sampler) updateTimeout() time.Duration {
	if s.UpdateTimeout <= 0 {
		return DefaultUpdateTimeout
	}
	return s.UpdateTimeout
}

func (s *Sampler) accept(sess *session, sample geo.Sample) {
	s.mu.Lock()
	if sess != s.current || sess.done {
		s.mu.Unlock()
		return
	}
	sess.result.Updates++
	best := sess.result.Best
	if best != nil && sample.AccuracyMeters >= best.AccuracyMeters {
		s.mu.Unlock()
		return
	}

	if best != nil {
		sess.result.Improvements++
	}
	kept := sample
	sess.result.Best = &kept
	verdict, ok := geo.Evaluate(sample.Point, sess.targets)
	if ok {
		sess.result.Verdict = &verdict
	}
	onBest := sess.onBest
	s.mu.Unlock()

	if ok && onBest != nil {
		onBest(verdict)
	}
}

func (s *Sampler) streamError(sess *session, err error) {
	s.mu.Lock()
	if sess != s.current || sess.done {
		s.mu.Unlock()
		return
	}
	after := s.failLocked(sess, err)
	s.mu.Unlock()
	run(after)
}

// failLocked records a stream error. Once a sample has been accepted errors are
// ignored; before that the first one is surfaced, and a permission denial ends
// the session.
func (s *Sampler) failLocked(sess *session, err error) []func() {
	if sess.result.Best != nil {
		return nil
	}
	err = Classify(err)
	sess.lastErr = err

	var after []func()
	if !sess.reported && !sess.opts.Silent && sess.opts.OnFailure != nil {
		onFailure := sess.opts.OnFailure
		after = append(after, func() { onFailure(err) })
	}
	sess.reported = true

	if errors.Is(err, ErrPermissionDenied) {
		after = append(after, s.finishLocked(sess, err, false)...)
	}
	return after
}

func (s *Sampler) expire(sess *session) {
	s.mu.Lock()
	if sess != s.current || sess.done {
		s.mu.Unlock()
		return
	}
	after := s.finishLocked(sess, nil, true)
	s.mu.Unlock()
	run(after)
}

func (s *Sampler) closed(sess *session) {
	s.expire(sess)
}

func (s *Sampler) cancel(sess *session) {
	s.mu.Lock()
	if sess.done {
		s.mu.Unlock()
		return
	}
	after := s.finishLocked(sess, ErrCancelled, false)
	s.mu.Unlock()
	run(after)
}

// finishLocked moves sess to Done. When reason is nil and no sample was
// accepted the session fails with the last stream error or a signal timeout.
// The returned funcs must run after the lock is released.
func (s *Sampler) finishLocked(sess *session, reason error, report bool) []func() {
	sess.done = true
	sess.result.EndedAt = s.Clock.Now()

	var after []func()
	if sess.timer != nil {
		timer := sess.timer
		after = append(after, func() { timer.Stop() })
	}
	if sess.sub != nil {
		after = append(after, sess.sub.Cancel)
	}

	if sess.result.Best == nil {
		err := reason
		if err == nil {
			err = sess.lastErr
		}
		if err == nil {
			err = ErrSignalTimeout
		}
		sess.result.Err = err
		if report && !sess.reported && !sess.opts.Silent && sess.opts.OnFailure != nil {
			onFailure := sess.opts.OnFailure
			after = append(after, func() { onFailure(err) })
		}
		sess.reported = true
	}

	if sess.opts.OnDone != nil {
		onDone := sess.opts.OnDone
		result := sess.result
		after = append(after, func() { onDone(result) })
	}
	return after
}

// Collect runs one session to completion and returns its result. It returns
// early with ErrCancelled when ctx ends first.
func Collect(ctx context.Context, s *Sampler, targets []geo.Target, onBest func(geo.Verdict), silent bool) Result {
	done := make(chan Result, 1)
	cancel := s.Begin(targets, onBest, Options{
		Silent: silent,
		OnDone: func(r Result) {
			select {
			case done <- r:
			default:
			}
		},
	})

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		cancel()
		return <-done
	}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
