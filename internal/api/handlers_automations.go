package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/go-chi/chi/v5"
)

type automationRequest struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	TriggerType    core.TriggerType    `json:"trigger_type"`
	CronExpression string              `json:"cron_expression"`
	NextRunAt      *time.Time          `json:"next_run_at"`
	Timezone       string              `json:"timezone"`
	AgentMode      core.AgentMode      `json:"agent_mode"`
	WorkspaceID    string              `json:"workspace_id"`
	Instruction    string              `json:"instruction"`
	ThreadStrategy core.ThreadStrategy `json:"thread_strategy"`
	// MaxFailures accepts a number or a string, as typed into a form field.
	MaxFailures json.RawMessage `json:"max_failures"`
}

func (req automationRequest) input() engine.Input {
	return engine.Input{
		Name:           req.Name,
		Description:    req.Description,
		TriggerType:    req.TriggerType,
		CronExpression: req.CronExpression,
		NextRunAt:      req.NextRunAt,
		Timezone:       req.Timezone,
		AgentMode:      req.AgentMode,
		WorkspaceID:    req.WorkspaceID,
		Instruction:    req.Instruction,
		ThreadStrategy: req.ThreadStrategy,
		MaxFailures:    rawNumberText(req.MaxFailures),
	}
}

func rawNumberText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type filterRequest struct {
	Status *core.AutomationStatus `json:"status"`
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	reg := s.dashboard.Registry
	st := reg.State()

	items := reg.Automations()
	views := make([]automationView, 0, len(items))
	for _, a := range items {
		views = append(views, s.automationView(a))
	}

	resp := listResponse{
		Items:   views,
		Total:   reg.Total(),
		Loading: st.Loading,
		Busy:    s.dashboard.Orchestrator.Busy(),
		Error:   toErrorView(reg.Err()),
	}
	if f := reg.StatusFilter(); f != nil {
		status := string(*f)
		resp.StatusFilter = &status
	}
	if !st.UpdatedAt.IsZero() {
		updated := st.UpdatedAt.UTC()
		resp.UpdatedAt = &updated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshAutomations(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Registry.RefetchNow(r.Context()); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.handleListAutomations(w, r)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "unknown status: "+string(*req.Status))
		return
	}
	// The session outlives the request.
	s.dashboard.SetStatusFilter(s.dashboard.Context(), req.Status)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "automationID")
	a, ok := s.dashboard.Registry.Find(id)
	if !ok {
		if cur, open := s.dashboard.Selection.Current(); open && cur.ID == id {
			a, ok = cur, true
		}
	}
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "automation not found")
		return
	}
	writeJSON(w, http.StatusOK, s.automationView(a))
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	a, err := s.dashboard.Orchestrator.Create(r.Context(), req.input())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.logger.Info("automation created", "automation_id", a.ID)
	writeJSON(w, http.StatusCreated, s.automationView(*a))
}

func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "automationID")
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	a, err := s.dashboard.Orchestrator.Update(r.Context(), id, req.input())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.automationView(*a))
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "automationID")
	if err := s.dashboard.Delete(r.Context(), id); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.logger.Info("automation deleted", "automation_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.dashboard.Orchestrator.Pause(r.Context(), chi.URLParam(r, "automationID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.automationView(*a))
}

func (s *Server) handleResumeAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.dashboard.Orchestrator.Resume(r.Context(), chi.URLParam(r, "automationID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.automationView(*a))
}

func (s *Server) handleTriggerAutomation(w http.ResponseWriter, r *http.Request) {
	e, err := s.dashboard.Orchestrator.Trigger(r.Context(), chi.URLParam(r, "automationID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.executionView(*e))
}
