// Package poll implements a recurring fetch with stale-response rejection.
//
// A Session fetches once on Start and then on every tick of its interval.
// Each request carries a sequence number and a response is applied only when
// its number is higher than anything applied before, so a slow early request
// can never overwrite a newer result. Ticks are skipped while any request of
// the session is still outstanding.
package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Refetch when the session is not running.
var ErrStopped = errors.New("polling session is not running")

// Trigger identifies what caused a fetch.
type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerTick    Trigger = "tick"
	TriggerRefetch Trigger = "refetch"
)

// FetchFunc loads the current value of the polled resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer receives fetch lifecycle events, typically for metrics.
type Observer interface {
	FetchStarted(session string, trigger Trigger)
	FetchFinished(session string, trigger Trigger, err error, applied bool)
	TickSkipped(session string)
}

// State is a point-in-time copy of a session's result.
type State[T any] struct {
	Data T
	// Loaded is true once any fetch has been applied.
	Loaded bool
	// Loading is true until the initial fetch of the current run completes.
	Loading   bool
	Err       error
	UpdatedAt time.Time
	Seq       uint64
}

type options struct {
	logger   *slog.Logger
	observer Observer
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger used for swallowed errors and skipped ticks.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer for fetch events.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// Session polls a single resource.
type Session[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	state    State[T]
	running  bool
	gen      uint64
	nextSeq  uint64
	applied  uint64
	inFlight int
	stopCh   chan struct{}

	notifyMu  sync.Mutex
	listeners []func(State[T])
}

// New creates a stopped session. Call Start to begin polling.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) *Session[T] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return &Session[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   o.logger.With("session", name),
		observer: o.observer,
	}
}

// OnUpdate registers fn to be called after every state change. Listeners are
// called one at a time with the latest state and must not call back into the
// same session synchronously.
func (s *Session[T]) OnUpdate(fn func(State[T])) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start clears the session state, fetches immediately and then polls every
// interval until Stop is called or ctx is done. Starting a running session
// restarts it.
func (s *Session[T]) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.stopLocked()
	}
	s.gen++
	gen := s.gen
	s.running = true
	s.state = State[T]{Loading: true}
	stop := make(chan struct{})
	s.stopCh = stop
	seq := s.issueLocked()
	s.mu.Unlock()

	s.notify()
	go func() {
		_ = s.do(ctx, gen, seq, TriggerInitial)
	}()
	go s.loop(ctx, gen, stop)
}

// Stop ends polling. Responses still in flight are discarded. Safe to call
// more than once.
func (s *Session[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stopLocked()
	}
}

// Running reports whether the session is polling.
func (s *Session[T]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Refetch performs one fetch now without touching the tick schedule and
// returns its error. The result is applied under the same ordering rules as
// scheduled fetches; an error is recorded as the session's last error.
func (s *Session[T]) Refetch(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrStopped
	}
	gen := s.gen
	seq := s.issueLocked()
	s.mu.Unlock()

	return s.do(ctx, gen, seq, TriggerRefetch)
}

// State returns a copy of the current state.
func (s *Session[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session[T]) stopLocked() {
	s.running = false
	s.gen++
	s.inFlight = 0
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Session[T]) issueLocked() uint64 {
	s.nextSeq++
	s.inFlight++
	return s.nextSeq
}

func (s *Session[T]) loop(ctx context.Context, gen uint64, stop <-chan struct{}) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.gen == gen && s.running {
				s.stopLocked()
			}
			s.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			s.tick(ctx, gen)
		}
	}
}

func (s *Session[T]) tick(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.running {
		s.mu.Unlock()
		return
	}
	if s.inFlight > 0 {
		s.mu.Unlock()
		s.logger.Debug("skipping tick, fetch still in flight")
		if s.observer != nil {
			s.observer.TickSkipped(s.name)
		}
		return
	}
	seq := s.issueLocked()
	s.mu.Unlock()

	go func() {
		_ = s.do(ctx, gen, seq, TriggerTick)
	}()
}

func (s *Session[T]) do(ctx context.Context, gen, seq uint64, trigger Trigger) error {
	if s.observer != nil {
		s.observer.FetchStarted(s.name, trigger)
	}
	data, err := s.fetch(ctx)
	changed, accepted := s.apply(gen, seq, trigger, data, err)
	if s.observer != nil {
		s.observer.FetchFinished(s.name, trigger, err, accepted)
	}
	if changed {
		s.notify()
	}
	return err
}

// apply records a response. changed reports whether the visible state moved;
// accepted reports whether the response itself was applied rather than
// discarded as stale or swallowed.
func (s *Session[T]) apply(gen, seq uint64, trigger Trigger, data T, err error) (changed, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || !s.running {
		s.logger.Debug("discarding response from stopped session", "seq", seq)
		return false, false
	}
	s.inFlight--

	if trigger == TriggerInitial && s.state.Loading {
		s.state.Loading = false
		changed = true
	}

	if seq <= s.applied {
		s.logger.Debug("discarding stale response", "seq", seq, "applied", s.applied)
		return changed, false
	}

	if err != nil {
		if trigger == TriggerTick {
			s.logger.Debug("background fetch failed, keeping last state", "seq", seq, "err", err)
			return changed, false
		}
		s.applied = seq
		s.state.Err = err
		return true, true
	}

	s.applied = seq
	s.state.Data = data
	s.state.Loaded = true
	s.state.Loading = false
	s.state.Err = nil
	s.state.UpdatedAt = time.Now()
	s.state.Seq = seq
	return true, true
}

func (s *Session[T]) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if len(s.listeners) == 0 {
		return
	}
	st := s.State()
	for _, fn := range s.listeners {
		fn(st)
	}
}
