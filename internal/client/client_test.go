package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"automationdash/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "secret")
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsEmptyURL(t *testing.T) {
	_, err := New("  ", "")
	assert.Error(t, err)
}

func TestListAutomations_SendsQueryAndHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "paused", r.URL.Query().Get("status"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		writeJSON(w, http.StatusOK, core.AutomationPage{
			Items: []core.Automation{{ID: "a1", Name: "Digest", Status: core.AutomationStatusPaused}},
			Total: 1,
		})
	})
	c := newTestClient(t, r)

	status := core.AutomationStatusPaused
	page, err := c.ListAutomations(context.Background(), core.AutomationQuery{Status: &status, Limit: 50})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a1", page.Items[0].ID)
	assert.Equal(t, 1, page.Total)
}

func TestListAutomations_NoStatusFilter(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["status"]
		assert.False(t, ok)
		writeJSON(w, http.StatusOK, core.AutomationPage{})
	})
	c := newTestClient(t, r)

	_, err := c.ListAutomations(context.Background(), core.AutomationQuery{Limit: 10})
	require.NoError(t, err)
}

func TestCreateAutomation_OmitsUnsetFields(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "once", body["trigger_type"])
		assert.NotContains(t, body, "cron_expression")
		assert.NotContains(t, body, "workspace_id")
		writeJSON(w, http.StatusCreated, core.Automation{ID: "new", Name: body["name"].(string)})
	})
	c := newTestClient(t, r)

	runAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := c.CreateAutomation(context.Background(), core.Payload{
		Name:        "Ping",
		TriggerType: core.TriggerTypeOnce,
		NextRunAt:   &runAt,
		AgentMode:   core.AgentModeChat,
		Instruction: "say hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", a.ID)
	assert.Equal(t, "Ping", a.Name)
}

func TestLifecycleEndpoints(t *testing.T) {
	var hits []string
	r := chi.NewRouter()
	r.Route("/v1/automations/{id}", func(r chi.Router) {
		r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "update:"+chi.URLParam(r, "id"))
			writeJSON(w, http.StatusOK, core.Automation{ID: chi.URLParam(r, "id")})
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "delete:"+chi.URLParam(r, "id"))
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/pause", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "pause")
			writeJSON(w, http.StatusOK, core.Automation{ID: "a1", Status: core.AutomationStatusPaused})
		})
		r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "resume")
			writeJSON(w, http.StatusOK, core.Automation{ID: "a1", Status: core.AutomationStatusActive})
		})
		r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "trigger")
			writeJSON(w, http.StatusAccepted, core.Execution{ID: "e1", AutomationID: "a1", Status: core.ExecutionStatusPending})
		})
		r.Get("/executions", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "executions:"+r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, core.ExecutionPage{Items: []core.Execution{{ID: "e1"}}, Total: 1})
		})
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.UpdateAutomation(ctx, "a1", core.Payload{Name: "renamed"})
	require.NoError(t, err)
	require.NoError(t, c.DeleteAutomation(ctx, "a1"))

	a, err := c.PauseAutomation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.AutomationStatusPaused, a.Status)

	a, err = c.ResumeAutomation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.AutomationStatusActive, a.Status)

	e, err := c.TriggerAutomation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)

	page, err := c.ListExecutions(ctx, "a1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	assert.Equal(t, []string{"update:a1", "delete:a1", "pause", "resume", "trigger", "executions:20"}, hits)
}

func TestAPIError_StringDetail(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/automations/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Automation not found"})
	})
	c := newTestClient(t, r)

	_, err := c.GetAutomation(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus())
	assert.JSONEq(t, `"Automation not found"`, string(apiErr.ErrorDetail()))
	assert.Contains(t, apiErr.Error(), "Automation not found")
}

func TestAPIError_StructuredDetailAndRetryAfter(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/v1/automations/{id}/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"detail": map[string]any{"limit": 5}})
	})
	c := newTestClient(t, r)

	_, err := c.TriggerAutomation(context.Background(), "a1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "30", apiErr.RetryAfterHeader())
	assert.JSONEq(t, `{"limit":5}`, string(apiErr.Detail))
}

func TestAPIError_NonJSONBody(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/automations", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	c := newTestClient(t, r)

	_, err := c.ListAutomations(context.Background(), core.AutomationQuery{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Detail)
	assert.Contains(t, apiErr.Body, "upstream exploded")
}

func TestNetworkError_NotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "")
	require.NoError(t, err)
	_, err = c.GetAutomation(context.Background(), "a1")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	d, ok := ParseRetryAfter("120", now)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	d, ok = ParseRetryAfter(now.Add(45*time.Second).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, d)

	_, ok = ParseRetryAfter("soon", now)
	assert.False(t, ok)

	_, ok = ParseRetryAfter("", now)
	assert.False(t, ok)
}
