package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"automationdash/internal/core"
)

type cronDescribeRequest struct {
	Expr     string `json:"expr"`
	Timezone string `json:"timezone,omitempty"`
	Now      string `json:"now,omitempty"`
	Count    int    `json:"count,omitempty"`
}

type cronDescribeResponse struct {
	Valid       bool     `json:"valid"`
	Description string   `json:"description,omitempty"`
	NextTimes   []string `json:"next_times,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func (s *Server) handleCronDescribe(w http.ResponseWriter, r *http.Request) {
	var req cronDescribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cronDescribeResponse{Valid: false, Message: "invalid JSON payload"})
		return
	}
	expr := strings.TrimSpace(req.Expr)
	if expr == "" {
		writeJSON(w, http.StatusBadRequest, cronDescribeResponse{Valid: false, Message: "cron expression is required"})
		return
	}

	schedule := core.Schedule{Type: core.TriggerTypeCron, CronExpression: expr, Timezone: req.Timezone}
	resp := cronDescribeResponse{Description: schedule.Label()}

	count := req.Count
	if count <= 0 || count > 10 {
		count = 5
	}
	base := time.Now()
	if req.Now != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Now); err == nil {
			base = parsed
		}
	}

	times, err := schedule.Upcoming(base, count)
	if err != nil {
		resp.Message = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Valid = true
	for _, t := range times {
		resp.NextTimes = append(resp.NextTimes, t.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, resp)
}
