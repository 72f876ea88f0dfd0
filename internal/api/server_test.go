package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"automationdash/internal/client"
	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream is an in-memory Automation API.
type upstream struct {
	mu          sync.Mutex
	automations []core.Automation
	executions  map[string][]core.Execution
	rateLimit   bool
}

func (u *upstream) router() chi.Router {
	r := chi.NewRouter()
	r.Get("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		status := r.URL.Query().Get("status")
		items := []core.Automation{}
		for _, a := range u.automations {
			if status == "" || string(a.Status) == status {
				items = append(items, a)
			}
		}
		writeJSON(w, http.StatusOK, core.AutomationPage{Items: items, Total: len(items)})
	})
	r.Post("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		var p core.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		a := core.Automation{ID: "created", Name: p.Name, TriggerType: p.TriggerType, CronExpression: p.CronExpression, Status: core.AutomationStatusActive}
		u.mu.Lock()
		u.automations = append(u.automations, a)
		u.mu.Unlock()
		writeJSON(w, http.StatusCreated, a)
	})
	r.Post("/v1/automations/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		for i := range u.automations {
			if u.automations[i].ID == chi.URLParam(r, "id") {
				u.automations[i].Status = core.AutomationStatusPaused
				writeJSON(w, http.StatusOK, u.automations[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Automation not found"})
	})
	r.Post("/v1/automations/{id}/trigger", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		limited := u.rateLimit
		u.mu.Unlock()
		if limited {
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"detail": "Too many manual runs"})
			return
		}
		writeJSON(w, http.StatusAccepted, core.Execution{ID: "run", AutomationID: chi.URLParam(r, "id"), Status: core.ExecutionStatusPending})
	})
	r.Get("/v1/automations/{id}/executions", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		items := u.executions[chi.URLParam(r, "id")]
		writeJSON(w, http.StatusOK, core.ExecutionPage{Items: items, Total: len(items)})
	})
	return r
}

type harness struct {
	upstream *upstream
	server   *httptest.Server
	dash     *engine.Dashboard
}

func newHarness(t *testing.T, authToken string) *harness {
	t.Helper()
	started := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(30 * time.Second)
	up := &upstream{
		automations: []core.Automation{
			{ID: "a1", Name: "Digest", TriggerType: core.TriggerTypeCron, CronExpression: "0 9 * * 1-5", Status: core.AutomationStatusActive},
			{ID: "a2", Name: "Broken", TriggerType: core.TriggerTypeCron, CronExpression: "*/15 * * * *", Status: core.AutomationStatusDisabled},
		},
		executions: map[string][]core.Execution{
			"a1": {{ID: "e1", AutomationID: "a1", Status: core.ExecutionStatusCompleted, StartedAt: &started, CompletedAt: &finished}},
		},
	}
	upSrv := httptest.NewServer(up.router())
	t.Cleanup(upSrv.Close)

	c, err := client.New(upSrv.URL, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dash := engine.NewDashboard(c, engine.Config{AutomationInterval: time.Hour, ExecutionInterval: time.Hour})
	dash.Start(ctx)
	t.Cleanup(dash.Stop)
	require.Eventually(t, func() bool { return dash.Registry.Total() == 2 }, 2*time.Second, 5*time.Millisecond)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("", dash, logger, Options{
		AuthToken: authToken,
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "metrics") }),
		Palette:   core.DefaultPalette().Without("disabled"),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{upstream: up, server: ts, dash: dash}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type problemBody struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func TestListAutomations(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodGet, "/v1/automations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[listResponse](t, resp)

	require.Len(t, body.Items, 2)
	assert.Equal(t, 2, body.Total)
	assert.False(t, body.Loading)
	assert.Nil(t, body.StatusFilter)
	assert.Equal(t, "At 9:00 AM, Mon–Fri", body.Items[0].Schedule)
	assert.Equal(t, core.ToneSuccess, body.Items[0].Tone)
	assert.Equal(t, "Every 15 minutes", body.Items[1].Schedule)
	assert.Equal(t, core.ToneNeutral, body.Items[1].Tone, "disabled is configured as neutral")
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, "s3cret")

	resp := h.do(t, http.MethodGet, "/v1/automations", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, problemContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "unauthorized", decode[problemBody](t, resp).Type)

	resp = h.do(t, http.MethodGet, "/v1/automations?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "metrics stay public")
}

func TestPauseRefreshesRegistry(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPost, "/v1/automations/a1/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.AutomationStatusPaused, decode[automationView](t, resp).Status)

	a, ok := h.dash.Registry.Find("a1")
	require.True(t, ok)
	assert.Equal(t, core.AutomationStatusPaused, a.Status)
}

func TestUpstreamNotFoundPassesThrough(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPost, "/v1/automations/missing/pause", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	p := decode[problemBody](t, resp)
	assert.Equal(t, "validation_error", p.Type)
	assert.Equal(t, "Automation not found", p.Detail)
}

func TestTriggerRateLimited(t *testing.T) {
	h := newHarness(t, "")
	h.upstream.rateLimit = true

	resp := h.do(t, http.MethodPost, "/v1/automations/a1/trigger", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	p := decode[problemBody](t, resp)
	assert.Equal(t, "rate_limited", p.Type)
	assert.Equal(t, "Too many manual runs", p.Detail)
}

func TestCreateAutomation(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPost, "/v1/automations", map[string]any{
		"name": "Hourly", "trigger_type": "cron", "cron_expression": "0 * * * *",
		"agent_mode": "chat", "instruction": "ping", "max_failures": "4",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v := decode[automationView](t, resp)
	assert.Equal(t, "created", v.ID)
	assert.Equal(t, "Every hour", v.Schedule)
	assert.Equal(t, 3, h.dash.Registry.Total())

	resp = h.do(t, http.MethodPost, "/v1/automations", map[string]any{"name": "No trigger"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", decode[problemBody](t, resp).Type)
}

func TestSelectionLifecycle(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPut, "/v1/selection", selectionRequest{ID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPut, "/v1/selection", selectionRequest{ID: "a1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return h.dash.Tracker.Total() == 1 }, 2*time.Second, 5*time.Millisecond)
	resp = h.do(t, http.MethodGet, "/v1/selection", nil)
	sel := decode[selectionResponse](t, resp)
	require.NotNil(t, sel.Automation)
	assert.Equal(t, "a1", sel.Automation.ID)
	require.Len(t, sel.Executions, 1)
	require.NotNil(t, sel.Executions[0].DurationSeconds)
	assert.Equal(t, 30.0, *sel.Executions[0].DurationSeconds)

	resp = h.do(t, http.MethodPost, "/v1/selection/toggle", selectionRequest{ID: "a1"})
	sel = decode[selectionResponse](t, resp)
	assert.Nil(t, sel.Automation, "toggling the open automation closes it")
	assert.Empty(t, sel.Executions)
	assert.Equal(t, "", h.dash.Tracker.TrackedID())
}

func TestSetFilter(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPut, "/v1/automations/filter", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPut, "/v1/automations/filter", map[string]any{"status": "disabled"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Eventually(t, func() bool { return h.dash.Registry.Total() == 1 }, 2*time.Second, 5*time.Millisecond)

	body := decode[listResponse](t, h.do(t, http.MethodGet, "/v1/automations", nil))
	require.NotNil(t, body.StatusFilter)
	assert.Equal(t, "disabled", *body.StatusFilter)
}

func TestCronDescribe(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, http.MethodPost, "/v1/cron/describe", cronDescribeRequest{
		Expr: "30 14 * * *", Now: "2026-01-01T00:00:00Z", Count: 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[cronDescribeResponse](t, resp)
	assert.True(t, body.Valid)
	assert.Equal(t, "Daily at 2:30 PM", body.Description)
	assert.Equal(t, []string{"2026-01-01T14:30:00Z", "2026-01-02T14:30:00Z"}, body.NextTimes)

	resp = h.do(t, http.MethodPost, "/v1/cron/describe", cronDescribeRequest{Expr: "every day"})
	body = decode[cronDescribeResponse](t, resp)
	assert.False(t, body.Valid)
	assert.Equal(t, "every day", body.Description)
	assert.NotEmpty(t, body.Message)
}
