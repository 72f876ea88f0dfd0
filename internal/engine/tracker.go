package engine

import (
	"context"
	"sync"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/poll"
)

// TrackerSession is the poll session name used by the Tracker.
const TrackerSession = "executions"

// Tracker owns the execution history of at most one automation.
type Tracker struct {
	api      API
	interval time.Duration
	pageSize int
	settings settings

	mu        sync.Mutex
	id        string
	session   *poll.Session[core.ExecutionPage]
	listeners []func(string, poll.State[core.ExecutionPage])
}

// NewTracker creates a tracker that follows no automation.
func NewTracker(api API, cfg Config, opts ...Option) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		api:      api,
		interval: cfg.ExecutionInterval,
		pageSize: cfg.ExecutionPageSize,
		settings: newSettings(opts),
	}
}

// Track follows the automation with id. A new id restarts polling, the same
// id is a no-op and an empty id stops polling and resets to empty.
func (t *Tracker) Track(ctx context.Context, id string) {
	t.mu.Lock()
	if id == t.id {
		t.mu.Unlock()
		return
	}
	old := t.session
	t.id = id
	t.session = nil

	var next *poll.Session[core.ExecutionPage]
	if id != "" {
		next = poll.New(TrackerSession, t.interval, t.fetcher(id), t.settings.pollOptions()...)
		next.OnUpdate(func(st poll.State[core.ExecutionPage]) {
			t.notify(id, st)
		})
		t.session = next
	}
	t.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if next != nil {
		next.Start(ctx)
	} else {
		t.notify("", poll.State[core.ExecutionPage]{})
	}
}

func (t *Tracker) fetcher(id string) poll.FetchFunc[core.ExecutionPage] {
	return func(ctx context.Context) (core.ExecutionPage, error) {
		page, err := t.api.ListExecutions(ctx, id, t.pageSize, 0)
		if err != nil {
			return core.ExecutionPage{}, Normalize("list executions", err)
		}
		return *page, nil
	}
}

// Stop stops polling and forgets the tracked automation.
func (t *Tracker) Stop() {
	t.Track(context.Background(), "")
}

// TrackedID returns the followed automation id, or "".
func (t *Tracker) TrackedID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// Subscribe registers fn for every state change. fn receives the automation
// id the state belongs to.
func (t *Tracker) Subscribe(fn func(id string, st poll.State[core.ExecutionPage])) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// State returns the state of the current session, empty when nothing is tracked.
func (t *Tracker) State() poll.State[core.ExecutionPage] {
	t.mu.Lock()
	s := t.session
	t.mu.Unlock()
	if s == nil {
		return poll.State[core.ExecutionPage]{}
	}
	return s.State()
}

// Executions returns the tracked history, most recent first.
func (t *Tracker) Executions() []core.Execution {
	return t.State().Data.Items
}

// Total returns the server-side execution count.
func (t *Tracker) Total() int {
	return t.State().Data.Total
}

// Loading reports whether the first fetch for the tracked id is outstanding.
func (t *Tracker) Loading() bool {
	return t.State().Loading
}

// Err returns the last surfaced error, or nil.
func (t *Tracker) Err() *Error {
	return asError(t.State().Err)
}

// RefetchNow fetches the tracked history immediately. It is a no-op when
// nothing is tracked.
func (t *Tracker) RefetchNow(ctx context.Context) error {
	t.mu.Lock()
	s := t.session
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Refetch(ctx)
}

func (t *Tracker) notify(id string, st poll.State[core.ExecutionPage]) {
	t.mu.Lock()
	if id != t.id {
		t.mu.Unlock()
		return
	}
	listeners := append([]func(string, poll.State[core.ExecutionPage]){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(id, st)
	}
}
