package engine

import (
	"context"
	"fmt"
	"sync"

	"automationdash/internal/core"
	"automationdash/internal/poll"
)

// Notifier delivers a short message to the operator.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Watcher reports automations entering a terminal status. The first
// collection it sees is only recorded.
type Watcher struct {
	notifier Notifier
	watch    map[core.AutomationStatus]bool
	settings settings

	mu      sync.Mutex
	seen    bool
	lastSeq uint64
	known   map[string]core.AutomationStatus

	// sendMu keeps deliveries in observation order.
	sendMu  sync.Mutex
	pending sync.WaitGroup
}

// NewWatcher creates a watcher notifying on transitions into disabled or
// completed.
func NewWatcher(notifier Notifier, opts ...Option) *Watcher {
	return &Watcher{
		notifier: notifier,
		watch: map[core.AutomationStatus]bool{
			core.AutomationStatusDisabled:  true,
			core.AutomationStatusCompleted: true,
		},
		settings: newSettings(opts),
		known:    make(map[string]core.AutomationStatus),
	}
}

// Attach subscribes the watcher to registry updates.
func (w *Watcher) Attach(ctx context.Context, r *Registry) {
	r.Subscribe(func(st poll.State[core.AutomationPage]) {
		if !st.Loaded {
			return
		}
		w.Observe(ctx, st.Seq, st.Data.Items)
	})
}

// Observe compares items against the previous collection and sends one
// notification per transition in the background, so a slow notifier never
// holds up the registry listener. Repeated calls with the same seq are
// ignored.
func (w *Watcher) Observe(ctx context.Context, seq uint64, items []core.Automation) {
	w.mu.Lock()
	if w.seen && seq != 0 && seq == w.lastSeq {
		w.mu.Unlock()
		return
	}
	var changed []core.Automation
	next := make(map[string]core.AutomationStatus, len(items))
	for _, a := range items {
		next[a.ID] = a.Status
		prev, ok := w.known[a.ID]
		if w.seen && ok && prev != a.Status && w.watch[a.Status] {
			changed = append(changed, a)
		}
	}
	w.known = next
	w.seen = true
	w.lastSeq = seq
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	w.pending.Add(1)
	go w.deliver(ctx, changed)
}

// Wait blocks until queued notifications have been delivered.
func (w *Watcher) Wait() {
	w.pending.Wait()
}

func (w *Watcher) deliver(ctx context.Context, changed []core.Automation) {
	defer w.pending.Done()
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	for _, a := range changed {
		title := fmt.Sprintf("Automation %s", a.Status)
		body := fmt.Sprintf("%s (%s)", a.Name, core.DescribeSchedule(a))
		if a.Status == core.AutomationStatusDisabled && a.MaxFailures > 0 {
			body = fmt.Sprintf("%s disabled after %d/%d failures", a.Name, a.FailureCount, a.MaxFailures)
		}
		w.settings.logger.Info("automation status changed", "automation_id", a.ID, "status", a.Status)
		if err := w.notifier.Send(ctx, title, body); err != nil {
			w.settings.logger.Warn("send notification", "automation_id", a.ID, "err", err)
		}
	}
}
