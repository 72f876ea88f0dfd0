package engine

import (
	"context"
	"errors"
	"sync"

	"automationdash/internal/core"
)

var errNotFound = errors.New("not found")

type fakeAPI struct {
	mu          sync.Mutex
	automations []core.Automation
	executions  map[string][]core.Execution
	listErr     error
	mutErr      error
	// gate, when set, blocks mutations until it is closed.
	gate chan struct{}

	calls    []string
	queries  []core.AutomationQuery
	execIDs  []string
	payloads []core.Payload
}

func newFakeAPI(items ...core.Automation) *fakeAPI {
	return &fakeAPI{automations: items, executions: make(map[string][]core.Execution)}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) setAutomations(items ...core.Automation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.automations = items
}

func (f *fakeAPI) mutation(ctx context.Context, call string) error {
	f.record(call)
	f.mu.Lock()
	gate, err := f.gate, f.mutErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAPI) ListAutomations(_ context.Context, q core.AutomationQuery) (*core.AutomationPage, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var items []core.Automation
	for _, a := range f.automations {
		if q.Status == nil || a.Status == *q.Status {
			items = append(items, a)
		}
	}
	return &core.AutomationPage{Items: items, Total: len(items)}, nil
}

func (f *fakeAPI) GetAutomation(_ context.Context, id string) (*core.Automation, error) {
	f.record("get")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.automations {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeAPI) CreateAutomation(ctx context.Context, p core.Payload) (*core.Automation, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	if err := f.mutation(ctx, "create"); err != nil {
		return nil, err
	}
	return &core.Automation{ID: "new", Name: p.Name, TriggerType: p.TriggerType}, nil
}

func (f *fakeAPI) UpdateAutomation(ctx context.Context, id string, p core.Payload) (*core.Automation, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	if err := f.mutation(ctx, "update"); err != nil {
		return nil, err
	}
	return &core.Automation{ID: id, Name: p.Name}, nil
}

func (f *fakeAPI) DeleteAutomation(ctx context.Context, id string) error {
	return f.mutation(ctx, "delete")
}

func (f *fakeAPI) PauseAutomation(ctx context.Context, id string) (*core.Automation, error) {
	if err := f.mutation(ctx, "pause"); err != nil {
		return nil, err
	}
	return &core.Automation{ID: id, Status: core.AutomationStatusPaused}, nil
}

func (f *fakeAPI) ResumeAutomation(ctx context.Context, id string) (*core.Automation, error) {
	if err := f.mutation(ctx, "resume"); err != nil {
		return nil, err
	}
	return &core.Automation{ID: id, Status: core.AutomationStatusActive}, nil
}

func (f *fakeAPI) TriggerAutomation(ctx context.Context, id string) (*core.Execution, error) {
	if err := f.mutation(ctx, "trigger"); err != nil {
		return nil, err
	}
	return &core.Execution{ID: "run-1", AutomationID: id, Status: core.ExecutionStatusPending}, nil
}

func (f *fakeAPI) ListExecutions(_ context.Context, automationID string, limit, offset int) (*core.ExecutionPage, error) {
	f.record("executions")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execIDs = append(f.execIDs, automationID)
	items := f.executions[automationID]
	return &core.ExecutionPage{Items: items, Total: len(items)}, nil
}

func (f *fakeAPI) trackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execIDs...)
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefresher) RefetchNow(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
