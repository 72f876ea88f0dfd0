package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type selectionRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	s.writeSelection(w)
}

func (s *Server) writeSelection(w http.ResponseWriter) {
	resp := selectionResponse{Executions: []executionView{}}
	if a, ok := s.dashboard.Selection.Current(); ok {
		v := s.automationView(a)
		resp.Automation = &v

		tr := s.dashboard.Tracker
		st := tr.State()
		page := st.Data
		if !st.Loaded {
			if cached, ok := s.dashboard.CachedExecutions(a.ID); ok {
				page = cached
			}
		}
		for _, e := range page.Items {
			resp.Executions = append(resp.Executions, s.executionView(e))
		}
		resp.Total = page.Total
		resp.Loading = st.Loading
		resp.Error = toErrorView(tr.Err())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeSelection(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return "", false
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "id is required")
		return "", false
	}
	return id, true
}

func (s *Server) handleOpenSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeSelection(w, r)
	if !ok {
		return
	}
	if _, found := s.dashboard.Open(id); !found {
		writeProblem(w, r, http.StatusNotFound, "not_found", "automation not found")
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeSelection(w, r)
	if !ok {
		return
	}
	a, found := s.dashboard.Registry.Find(id)
	if !found {
		cur, open := s.dashboard.Selection.Current()
		if !open || cur.ID != id {
			writeProblem(w, r, http.StatusNotFound, "not_found", "automation not found")
			return
		}
		a = cur
	}
	s.dashboard.Toggle(a)
	s.writeSelection(w)
}

func (s *Server) handleCloseSelection(w http.ResponseWriter, r *http.Request) {
	s.dashboard.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Tracker.RefetchNow(r.Context()); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeSelection(w)
}
