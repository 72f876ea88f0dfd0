package engine

import (
	"context"
	"sync"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/poll"
)

// RegistrySession is the poll session name used by the Registry.
const RegistrySession = "automations"

// Registry owns the automation collection and keeps it in sync with the API.
type Registry struct {
	api      API
	pageSize int
	session  *poll.Session[core.AutomationPage]

	mu     sync.Mutex
	status *core.AutomationStatus
	seed   *core.AutomationPage
}

// NewRegistry creates a stopped registry.
func NewRegistry(api API, cfg Config, opts ...Option) *Registry {
	cfg = cfg.withDefaults()
	s := newSettings(opts)
	r := &Registry{api: api, pageSize: cfg.AutomationPageSize}
	r.session = poll.New(RegistrySession, cfg.AutomationInterval, r.fetch, s.pollOptions()...)
	return r
}

func (r *Registry) fetch(ctx context.Context) (core.AutomationPage, error) {
	q := core.AutomationQuery{Status: r.StatusFilter(), Limit: r.pageSize}
	page, err := r.api.ListAutomations(ctx, q)
	if err != nil {
		return core.AutomationPage{}, Normalize("list automations", err)
	}
	return *page, nil
}

// Start begins polling with the current status filter.
func (r *Registry) Start(ctx context.Context) {
	r.session.Start(ctx)
}

// Stop ends polling.
func (r *Registry) Stop() {
	r.session.Stop()
}

// Seed supplies a previously persisted collection shown until the first
// fetch is applied.
func (r *Registry) Seed(page core.AutomationPage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seed = &page
}

// SetStatusFilter changes the status filter. A changed filter restarts a
// running session from scratch; an unchanged filter is a no-op.
func (r *Registry) SetStatusFilter(ctx context.Context, status *core.AutomationStatus) {
	r.mu.Lock()
	if sameStatus(r.status, status) {
		r.mu.Unlock()
		return
	}
	if status != nil {
		s := *status
		status = &s
	}
	r.status = status
	r.seed = nil
	r.mu.Unlock()

	if r.session.Running() {
		r.session.Start(ctx)
	}
}

// StatusFilter returns the active status filter, or nil for all statuses.
func (r *Registry) StatusFilter() *core.AutomationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return nil
	}
	s := *r.status
	return &s
}

// RefetchNow fetches immediately. Its error is also recorded as Err.
func (r *Registry) RefetchNow(ctx context.Context) error {
	return r.session.Refetch(ctx)
}

// WaitLoaded blocks until the initial fetch of the current run has
// completed or ctx is done.
func (r *Registry) WaitLoaded(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for r.session.State().Loading {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Subscribe registers fn for every state change.
func (r *Registry) Subscribe(fn func(poll.State[core.AutomationPage])) {
	r.session.OnUpdate(fn)
}

// State returns the raw session state.
func (r *Registry) State() poll.State[core.AutomationPage] {
	return r.session.State()
}

// Automations returns the current collection.
func (r *Registry) Automations() []core.Automation {
	return r.page().Items
}

// Total returns the server-side count for the current filter.
func (r *Registry) Total() int {
	return r.page().Total
}

// Find returns the automation with id from the current collection.
func (r *Registry) Find(id string) (core.Automation, bool) {
	for _, a := range r.Automations() {
		if a.ID == id {
			return a, true
		}
	}
	return core.Automation{}, false
}

// Loading reports whether the first fetch is still outstanding. Background
// polls never set it.
func (r *Registry) Loading() bool {
	return r.session.State().Loading
}

// Err returns the last surfaced error, or nil.
func (r *Registry) Err() *Error {
	return asError(r.session.State().Err)
}

func (r *Registry) page() core.AutomationPage {
	st := r.session.State()
	if st.Loaded {
		return st.Data
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seed != nil {
		return *r.seed
	}
	return core.AutomationPage{}
}

func sameStatus(a, b *core.AutomationStatus) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func asError(err error) *Error {
	if err == nil {
		return nil
	}
	return Normalize("poll", err)
}
