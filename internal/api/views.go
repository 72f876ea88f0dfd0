package api

import (
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"
)

type automationView struct {
	core.Automation
	Schedule string    `json:"schedule"`
	Tone     core.Tone `json:"tone"`
}

type executionView struct {
	core.Execution
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	Tone            core.Tone `json:"tone"`
}

type errorView struct {
	Kind          engine.Kind `json:"kind"`
	Status        int         `json:"status,omitempty"`
	Message       string      `json:"message"`
	RetryAfter    string      `json:"retry_after,omitempty"`
	RetryAfterSec *float64    `json:"retry_after_seconds,omitempty"`
}

type listResponse struct {
	Items        []automationView `json:"items"`
	Total        int              `json:"total"`
	Loading      bool             `json:"loading"`
	Busy         bool             `json:"busy"`
	StatusFilter *string          `json:"status_filter"`
	Error        *errorView       `json:"error,omitempty"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

type selectionResponse struct {
	Automation *automationView `json:"automation"`
	Executions []executionView `json:"executions"`
	Total      int             `json:"total"`
	Loading    bool            `json:"loading"`
	Error      *errorView      `json:"error,omitempty"`
}

func (s *Server) automationView(a core.Automation) automationView {
	return automationView{
		Automation: a,
		Schedule:   core.DescribeSchedule(a),
		Tone:       s.palette.Tone(string(a.Status)),
	}
}

func (s *Server) executionView(e core.Execution) executionView {
	v := executionView{Execution: e, Tone: s.palette.Tone(string(e.Status))}
	if d, ok := e.Duration(); ok {
		secs := d.Seconds()
		v.DurationSeconds = &secs
	}
	return v
}

func toErrorView(e *engine.Error) *errorView {
	if e == nil {
		return nil
	}
	v := &errorView{Kind: e.Kind, Status: e.Status, Message: e.Message, RetryAfter: e.RetryAfterRaw}
	if e.RetryAfter > 0 {
		secs := e.RetryAfter.Seconds()
		v.RetryAfterSec = &secs
	}
	return v
}
