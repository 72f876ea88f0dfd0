package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"automationdash/internal/client"
	"automationdash/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busyRecorder struct {
	mu          sync.Mutex
	transitions []bool
}

func (b *busyRecorder) record(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitions = append(b.transitions, busy)
}

func (b *busyRecorder) get() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.transitions...)
}

func TestOrchestrator_BusyClearedOnSuccess(t *testing.T) {
	api := newFakeAPI()
	refresher := &countingRefresher{}
	o := NewOrchestrator(api, refresher)
	rec := &busyRecorder{}
	o.OnBusyChange(rec.record)

	a, err := o.Pause(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, core.AutomationStatusPaused, a.Status)

	assert.False(t, o.Busy())
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Equal(t, 1, refresher.count())
}

func TestOrchestrator_BusyClearedOnFailure(t *testing.T) {
	api := newFakeAPI()
	api.mutErr = &client.APIError{StatusCode: http.StatusConflict, Detail: json.RawMessage(`"Automation is not active"`)}
	refresher := &countingRefresher{}
	o := NewOrchestrator(api, refresher)
	rec := &busyRecorder{}
	o.OnBusyChange(rec.record)

	_, err := o.Resume(context.Background(), "a1")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "Automation is not active", e.Message)
	assert.Equal(t, "resume automation", e.Op)

	assert.False(t, o.Busy())
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Zero(t, refresher.count(), "failed mutations do not refetch")
}

func TestOrchestrator_BusyDuringCall(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	o := NewOrchestrator(api, &countingRefresher{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Trigger(context.Background(), "a1")
		done <- err
	}()

	require.Eventually(t, o.Busy, time.Second, time.Millisecond)

	_, err := o.Pause(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Zero(t, api.count("pause"), "second submit never reaches the API")

	close(api.gate)
	require.NoError(t, <-done)
	assert.False(t, o.Busy())
}

func TestOrchestrator_RefreshFailureNotReturned(t *testing.T) {
	api := newFakeAPI()
	refresher := &countingRefresher{err: errors.New("list failed")}
	o := NewOrchestrator(api, refresher)

	require.NoError(t, o.Delete(context.Background(), "a1"))
	assert.Equal(t, 1, refresher.count())
}

func TestOrchestrator_ValidationSkipsAPI(t *testing.T) {
	api := newFakeAPI()
	refresher := &countingRefresher{}
	o := NewOrchestrator(api, refresher)

	var outcomes []Outcome
	o.OnOutcome(func(out Outcome) { outcomes = append(outcomes, out) })

	_, err := o.Create(context.Background(), Input{Name: "x", TriggerType: core.TriggerTypeCron, AgentMode: core.AgentModeChat, Instruction: "go"})
	assert.True(t, IsKind(err, KindValidation))
	assert.Zero(t, api.count("create"))
	assert.Zero(t, refresher.count())
	require.Len(t, outcomes, 1)
	assert.Equal(t, "create automation", outcomes[0].Op)
	assert.NotNil(t, outcomes[0].Err)
}

func TestOrchestrator_CreateSendsShapedPayload(t *testing.T) {
	api := newFakeAPI()
	o := NewOrchestrator(api, &countingRefresher{})
	runAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	a, err := o.Create(context.Background(), Input{
		Name:           "Launch",
		TriggerType:    core.TriggerTypeOnce,
		CronExpression: "*/5 * * * *",
		NextRunAt:      &runAt,
		AgentMode:      core.AgentModeResearch,
		WorkspaceID:    "ws-9",
		Instruction:    "check status",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", a.ID)

	require.Len(t, api.payloads, 1)
	sent := api.payloads[0]
	assert.Empty(t, sent.CronExpression)
	assert.Empty(t, sent.WorkspaceID)
	assert.Equal(t, &runAt, sent.NextRunAt)
}

func TestOrchestrator_UpdateRequiresID(t *testing.T) {
	o := NewOrchestrator(newFakeAPI(), nil)
	_, err := o.Update(context.Background(), "", Input{})
	assert.True(t, IsKind(err, KindValidation))
}

func TestOrchestrator_NetworkError(t *testing.T) {
	api := newFakeAPI()
	api.mutErr = errors.New("dial tcp: connection refused")
	o := NewOrchestrator(api, &countingRefresher{})

	_, err := o.Trigger(context.Background(), "a1")
	assert.True(t, IsKind(err, KindNetwork))
	assert.False(t, o.Busy())
}
