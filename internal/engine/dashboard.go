package engine

import (
	"context"
	"sync"

	"automationdash/internal/core"
	"automationdash/internal/poll"
)

// SnapshotStore persists the last applied collections so a restart can show
// them before the first fetch returns.
type SnapshotStore interface {
	SaveAutomations(ctx context.Context, page core.AutomationPage) error
	LoadAutomations(ctx context.Context) (*core.AutomationPage, error)
	SaveExecutions(ctx context.Context, automationID string, page core.ExecutionPage) error
	GetAutomation(ctx context.Context, id string) (*core.Automation, error)
	LoadExecutions(ctx context.Context, automationID string) (*core.ExecutionPage, error)
}

// Dashboard composes the registry, the selection, the tracker and the
// orchestrator. Registry updates re-derive the selection and the tracker
// follows the selected id.
type Dashboard struct {
	Registry     *Registry
	Tracker      *Tracker
	Selection    *Selection
	Orchestrator *Orchestrator

	snapshots SnapshotStore
	settings  settings
	subscribe sync.Once

	// mu guards ctx and makes each selection change and the matching
	// Tracker.Track one step.
	mu  sync.Mutex
	ctx context.Context
}

// NewDashboard wires the engine components around api.
func NewDashboard(api API, cfg Config, opts ...Option) *Dashboard {
	registry := NewRegistry(api, cfg, opts...)
	return &Dashboard{
		Registry:     registry,
		Tracker:      NewTracker(api, cfg, opts...),
		Selection:    &Selection{},
		Orchestrator: NewOrchestrator(api, registry, opts...),
		settings:     newSettings(opts),
		ctx:          context.Background(),
	}
}

// UseSnapshots enables persistence of applied collections. Call before Start.
func (d *Dashboard) UseSnapshots(store SnapshotStore) {
	d.snapshots = store
}

// Start seeds from snapshots when available and begins polling. Polling
// stops when ctx is done. Listeners are registered on the first call only.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	if d.snapshots != nil {
		page, err := d.snapshots.LoadAutomations(ctx)
		switch {
		case err == nil && page != nil:
			d.Registry.Seed(*page)
		case err != nil:
			d.settings.logger.Debug("no automation snapshot", "err", err)
		}
	}

	d.subscribe.Do(func() {
		d.Registry.Subscribe(d.onAutomations)
		d.Tracker.Subscribe(d.onExecutions)
	})
	d.Registry.Start(ctx)
}

func (d *Dashboard) onAutomations(st poll.State[core.AutomationPage]) {
	if !st.Loaded {
		return
	}
	d.mu.Lock()
	ctx := d.ctx
	d.Selection.Sync(st.Data.Items)
	d.Tracker.Track(ctx, d.Selection.ID())
	d.mu.Unlock()

	if d.snapshots != nil {
		if err := d.snapshots.SaveAutomations(ctx, st.Data); err != nil {
			d.settings.logger.Warn("save automation snapshot", "err", err)
		}
	}
}

func (d *Dashboard) onExecutions(id string, st poll.State[core.ExecutionPage]) {
	if id == "" || !st.Loaded || d.snapshots == nil {
		return
	}
	if err := d.snapshots.SaveExecutions(d.Context(), id, st.Data); err != nil {
		d.settings.logger.Warn("save execution snapshot", "automation_id", id, "err", err)
	}
}

// Context returns the context polling runs under.
func (d *Dashboard) Context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// Stop ends all polling.
func (d *Dashboard) Stop() {
	d.Registry.Stop()
	d.Tracker.Stop()
}

// Toggle opens a, or closes it when it is already open, and points the
// tracker at the result.
func (d *Dashboard) Toggle(a core.Automation) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.Selection.Toggle(a)
	d.Tracker.Track(d.ctx, id)
	return id
}

// Open selects the automation with id from the current collection, or from
// the snapshot while the first fetch is still outstanding.
func (d *Dashboard) Open(id string) (core.Automation, bool) {
	a, ok := d.Registry.Find(id)
	if !ok && d.snapshots != nil && !d.Registry.State().Loaded {
		if cached, err := d.snapshots.GetAutomation(d.Context(), id); err == nil {
			a, ok = *cached, true
		}
	}
	if !ok {
		return core.Automation{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Selection.Select(a)
	d.Tracker.Track(d.ctx, a.ID)
	return a, true
}

// CachedExecutions returns the saved execution snapshot of id. It is meant
// for display until the tracker's first fetch lands.
func (d *Dashboard) CachedExecutions(id string) (core.ExecutionPage, bool) {
	if d.snapshots == nil || id == "" {
		return core.ExecutionPage{}, false
	}
	page, err := d.snapshots.LoadExecutions(d.Context(), id)
	if err != nil || page == nil {
		return core.ExecutionPage{}, false
	}
	return *page, true
}

// Close clears the selection and stops execution polling.
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dashboard) closeLocked() {
	d.Selection.Clear()
	d.Tracker.Track(d.ctx, "")
}

// Delete removes an automation and closes it when it was open.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.Orchestrator.Delete(ctx, id); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Selection.ID() == id {
		d.closeLocked()
	}
	return nil
}

// SetStatusFilter changes the registry filter.
func (d *Dashboard) SetStatusFilter(ctx context.Context, status *core.AutomationStatus) {
	d.Registry.SetStatusFilter(ctx, status)
}
