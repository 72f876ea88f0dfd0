package engine

import (
	"context"
	"sync"
	"time"

	"automationdash/internal/core"
)

// Refresher resyncs server state after a successful mutation.
type Refresher interface {
	RefetchNow(ctx context.Context) error
}

// Outcome describes a finished mutation.
type Outcome struct {
	Op       string
	Err      *Error
	Duration time.Duration
}

// Orchestrator runs mutations one at a time. Every success is followed by a
// full refetch of the automation collection.
type Orchestrator struct {
	api       API
	refresher Refresher
	validator *PayloadValidator
	settings  settings

	mu           sync.Mutex
	busy         bool
	busyHooks    []func(bool)
	outcomeHooks []func(Outcome)
}

// NewOrchestrator creates an orchestrator that refreshes refresher after
// each successful mutation.
func NewOrchestrator(api API, refresher Refresher, opts ...Option) *Orchestrator {
	return &Orchestrator{
		api:       api,
		refresher: refresher,
		validator: NewPayloadValidator(),
		settings:  newSettings(opts),
	}
}

// Busy reports whether a mutation is running.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// OnBusyChange registers fn for busy flag transitions.
func (o *Orchestrator) OnBusyChange(fn func(busy bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busyHooks = append(o.busyHooks, fn)
}

// OnOutcome registers fn for every finished mutation, successful or not.
func (o *Orchestrator) OnOutcome(fn func(Outcome)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomeHooks = append(o.outcomeHooks, fn)
}

// Create validates the form and creates an automation.
func (o *Orchestrator) Create(ctx context.Context, in Input) (*core.Automation, error) {
	const op = "create automation"
	return run(ctx, o, op, func(ctx context.Context) (*core.Automation, error) {
		payload := ShapePayload(in)
		if err := o.validator.Validate(op, payload); err != nil {
			return nil, err
		}
		return o.api.CreateAutomation(ctx, payload)
	})
}

// Update validates the form and replaces the automation's settings.
func (o *Orchestrator) Update(ctx context.Context, id string, in Input) (*core.Automation, error) {
	const op = "update automation"
	return run(ctx, o, op, func(ctx context.Context) (*core.Automation, error) {
		if id == "" {
			return nil, validationError(op, "id is required")
		}
		payload := ShapePayload(in)
		if err := o.validator.Validate(op, payload); err != nil {
			return nil, err
		}
		return o.api.UpdateAutomation(ctx, id, payload)
	})
}

// Delete removes an automation.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	_, err := run(ctx, o, "delete automation", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.api.DeleteAutomation(ctx, id)
	})
	return err
}

// Pause pauses an automation.
func (o *Orchestrator) Pause(ctx context.Context, id string) (*core.Automation, error) {
	return run(ctx, o, "pause automation", func(ctx context.Context) (*core.Automation, error) {
		return o.api.PauseAutomation(ctx, id)
	})
}

// Resume resumes a paused automation.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*core.Automation, error) {
	return run(ctx, o, "resume automation", func(ctx context.Context) (*core.Automation, error) {
		return o.api.ResumeAutomation(ctx, id)
	})
}

// Trigger starts a run now.
func (o *Orchestrator) Trigger(ctx context.Context, id string) (*core.Execution, error) {
	return run(ctx, o, "trigger automation", func(ctx context.Context) (*core.Execution, error) {
		return o.api.TriggerAutomation(ctx, id)
	})
}

func run[T any](ctx context.Context, o *Orchestrator, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !o.acquire() {
		return zero, ErrBusy
	}
	defer o.release()

	start := time.Now()
	result, err := fn(ctx)
	if err != nil {
		nerr := Normalize(op, err)
		o.settings.logger.Warn("mutation failed",
			"op", op, "kind", nerr.Kind, "status", nerr.Status, "message", nerr.Message, "err", nerr.Err)
		o.finish(Outcome{Op: op, Err: nerr, Duration: time.Since(start)})
		return zero, nerr
	}

	if o.refresher != nil {
		if rerr := o.refresher.RefetchNow(ctx); rerr != nil {
			o.settings.logger.Warn("refresh after mutation failed", "op", op, "err", rerr)
		}
	}
	o.finish(Outcome{Op: op, Duration: time.Since(start)})
	return result, nil
}

func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return false
	}
	o.busy = true
	hooks := append([]func(bool){}, o.busyHooks...)
	o.mu.Unlock()

	for _, fn := range hooks {
		fn(true)
	}
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	hooks := append([]func(bool){}, o.busyHooks...)
	o.mu.Unlock()

	for _, fn := range hooks {
		fn(false)
	}
}

func (o *Orchestrator) finish(out Outcome) {
	o.mu.Lock()
	hooks := append([]func(Outcome){}, o.outcomeHooks...)
	o.mu.Unlock()

	for _, fn := range hooks {
		fn(out)
	}
}
