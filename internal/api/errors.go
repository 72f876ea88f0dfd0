package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"automationdash/internal/engine"

	"github.com/moogar0880/problems"
)

const problemContentType = "application/problem+json"

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, kind, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(kind).
		WithDetail(detail)

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeEngineError maps engine failures onto problem responses. Upstream 4xx
// statuses pass through; upstream failures become 502 or 503.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, engine.ErrBusy) {
		writeProblem(w, r, http.StatusConflict, "busy", err.Error())
		return
	}

	e := engine.Normalize("request", err)
	switch e.Kind {
	case engine.KindRateLimited:
		if e.RetryAfterRaw != "" {
			w.Header().Set("Retry-After", e.RetryAfterRaw)
		}
		writeProblem(w, r, http.StatusTooManyRequests, "rate_limited", e.Message)
	case engine.KindValidation:
		status := e.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeProblem(w, r, status, "validation_error", e.Message)
	case engine.KindServer:
		writeProblem(w, r, http.StatusBadGateway, "upstream_error", e.Message)
	default:
		s.logger.Error("automation api unreachable", "op", e.Op, "err", e.Err)
		writeProblem(w, r, http.StatusServiceUnavailable, "upstream_unavailable", e.Message)
	}
}
