// Package engine keeps dashboard views consistent with the Automation API.
//
// A Registry polls the automation collection, a Tracker polls the execution
// history of one automation, a Selection remembers which automation is open
// and an Orchestrator runs mutations and resyncs the Registry afterwards.
// Dashboard composes the four.
package engine

import (
	"context"

	"automationdash/internal/core"
)

// API is the Automation API consumed by the engine. *client.Client
// implements it.
type API interface {
	ListAutomations(ctx context.Context, q core.AutomationQuery) (*core.AutomationPage, error)
	GetAutomation(ctx context.Context, id string) (*core.Automation, error)
	CreateAutomation(ctx context.Context, payload core.Payload) (*core.Automation, error)
	UpdateAutomation(ctx context.Context, id string, payload core.Payload) (*core.Automation, error)
	DeleteAutomation(ctx context.Context, id string) error
	PauseAutomation(ctx context.Context, id string) (*core.Automation, error)
	ResumeAutomation(ctx context.Context, id string) (*core.Automation, error)
	TriggerAutomation(ctx context.Context, id string) (*core.Execution, error)
	ListExecutions(ctx context.Context, automationID string, limit, offset int) (*core.ExecutionPage, error)
}
