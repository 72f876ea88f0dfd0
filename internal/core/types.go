package core

import (
	"time"
)

// TriggerType selects how an automation is scheduled.
type TriggerType string

const (
	TriggerTypeCron TriggerType = "cron"
	TriggerTypeOnce TriggerType = "once"
)

// AutomationStatus describes the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusPending   AutomationStatus = "pending"
	AutomationStatusActive    AutomationStatus = "active"
	AutomationStatusPaused    AutomationStatus = "paused"
	AutomationStatusDisabled  AutomationStatus = "disabled"
	AutomationStatusCompleted AutomationStatus = "completed"
)

// AutomationStatuses lists every status in display order.
var AutomationStatuses = []AutomationStatus{
	AutomationStatusPending,
	AutomationStatusActive,
	AutomationStatusPaused,
	AutomationStatusDisabled,
	AutomationStatusCompleted,
}

// Valid reports whether s is a known automation status.
func (s AutomationStatus) Valid() bool {
	for _, known := range AutomationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ExecutionStatus describes the state of an individual run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Finished reports whether the execution reached a terminal state.
func (s ExecutionStatus) Finished() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// AgentMode selects how the agent runs an automation's instruction.
type AgentMode string

const (
	AgentModeChat     AgentMode = "chat"
	AgentModeResearch AgentMode = "research"
	AgentModeSandbox  AgentMode = "sandbox"
	AgentModeCode     AgentMode = "code"
)

// RequiresWorkspace reports whether the mode runs inside a sandboxed workspace.
func (m AgentMode) RequiresWorkspace() bool {
	return m == AgentModeSandbox || m == AgentModeCode
}

// ThreadStrategy decides whether each run starts a new conversation thread.
type ThreadStrategy string

const (
	ThreadStrategyNew      ThreadStrategy = "new"
	ThreadStrategyContinue ThreadStrategy = "continue"
)

// Automation is a scheduled or one-shot agent task as reported by the server.
type Automation struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	TriggerType    TriggerType      `json:"trigger_type"`
	CronExpression string           `json:"cron_expression,omitempty"`
	Timezone       string           `json:"timezone,omitempty"`
	NextRunAt      *time.Time       `json:"next_run_at,omitempty"`
	LastRunAt      *time.Time       `json:"last_run_at,omitempty"`
	Status         AutomationStatus `json:"status"`
	FailureCount   int              `json:"failure_count"`
	MaxFailures    int              `json:"max_failures"`
	AgentMode      AgentMode        `json:"agent_mode"`
	WorkspaceID    string           `json:"workspace_id,omitempty"`
	Instruction    string           `json:"instruction"`
	ThreadStrategy ThreadStrategy   `json:"thread_strategy,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Execution captures a single run attempt of an automation.
type Execution struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automation_id"`
	Status       ExecutionStatus `json:"status"`
	ScheduledAt  *time.Time      `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ThreadID     *string         `json:"thread_id,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// Duration returns how long the execution ran. The second result is false
// while the execution has not both started and completed.
func (e Execution) Duration() (time.Duration, bool) {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(*e.StartedAt), true
}

// AutomationPage is one page of the automation listing.
type AutomationPage struct {
	Items []Automation `json:"items"`
	Total int          `json:"total"`
}

// ExecutionPage is one page of an automation's execution history.
type ExecutionPage struct {
	Items []Execution `json:"items"`
	Total int         `json:"total"`
}

// Payload is the body sent on create and update. Unset fields are omitted
// entirely so the server never sees an empty string or null for them.
type Payload struct {
	Name           string         `json:"name,omitempty"`
	Description    string         `json:"description,omitempty"`
	TriggerType    TriggerType    `json:"trigger_type,omitempty"`
	CronExpression string         `json:"cron_expression,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	AgentMode      AgentMode      `json:"agent_mode,omitempty"`
	WorkspaceID    string         `json:"workspace_id,omitempty"`
	Instruction    string         `json:"instruction,omitempty"`
	ThreadStrategy ThreadStrategy `json:"thread_strategy,omitempty"`
	MaxFailures    int            `json:"max_failures,omitempty"`
}

// AutomationQuery selects a page of the automation listing. A nil Status
// lists every automation.
type AutomationQuery struct {
	Status *AutomationStatus
	Limit  int
	Offset int
}
