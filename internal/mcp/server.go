package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// MCPServer exposes the dashboard as MCP tools.
type MCPServer struct {
	dash   *engine.Dashboard
	api    engine.API
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates a new MCP server instance and registers its tools.
func NewMCPServer(dash *engine.Dashboard, api engine.API, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		dash:   dash,
		api:    api,
		logger: logger,
		server: server.NewMCPServer(
			"automationdash",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	return s
}

// Run serves the tools over stdio until stdin closes.
func (s *MCPServer) Run() error {
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(s.server)
}

// HTTPHandler serves the tools over streamable HTTP.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func (s *MCPServer) registerTools() {
	statuses := make([]string, 0, len(core.AutomationStatuses))
	for _, st := range core.AutomationStatuses {
		statuses = append(statuses, string(st))
	}

	s.server.AddTool(mcp.NewTool("automation_list",
		mcp.WithDescription("List automations from the dashboard cache, optionally switching the status filter"),
		mcp.WithString("status",
			mcp.Description("Status filter; use 'all' to clear it"),
			mcp.Enum(append([]string{"all"}, statuses...)...),
		),
	), s.handleList)

	s.server.AddTool(mcp.NewTool("automation_get",
		mcp.WithDescription("Show one automation with its schedule"),
		mcp.WithString("automation_id",
			mcp.Required(),
			mcp.Description("Automation ID"),
		),
	), s.handleGet)

	s.server.AddTool(mcp.NewTool("automation_create",
		mcp.WithDescription("Create an automation. Cron triggers use a standard 5-field expression (minute hour day month weekday)"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Automation name"),
		),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("What the agent should do on each run"),
		),
		mcp.WithString("trigger_type",
			mcp.Description("cron (default) or once"),
			mcp.Enum(string(core.TriggerTypeCron), string(core.TriggerTypeOnce)),
		),
		mcp.WithString("cron",
			mcp.Description("Cron expression, e.g. '0 9 * * 1-5' for weekdays at 9 AM"),
		),
		mcp.WithString("run_at",
			mcp.Description("RFC 3339 time of a one-shot run"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone, e.g. Europe/Berlin"),
		),
		mcp.WithString("agent_mode",
			mcp.Description("Agent mode, default chat"),
			mcp.Enum(string(core.AgentModeChat), string(core.AgentModeResearch), string(core.AgentModeSandbox), string(core.AgentModeCode)),
		),
		mcp.WithString("workspace_id",
			mcp.Description("Workspace for sandbox and code modes"),
		),
		mcp.WithNumber("max_failures",
			mcp.Description("Consecutive failures before the automation is disabled, default 3"),
			mcp.Min(1),
		),
	), s.handleCreate)

	s.server.AddTool(mcp.NewTool("automation_update",
		mcp.WithDescription("Update an automation; omitted fields keep their current value"),
		mcp.WithString("automation_id",
			mcp.Required(),
			mcp.Description("Automation ID"),
		),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("instruction", mcp.Description("New instruction")),
		mcp.WithString("cron", mcp.Description("New cron expression")),
		mcp.WithString("timezone", mcp.Description("New IANA timezone")),
	), s.handleUpdate)

	for _, action := range []struct{ name, desc string }{
		{"automation_pause", "Pause an active automation"},
		{"automation_resume", "Resume a paused automation"},
		{"automation_trigger", "Start a run of an automation now"},
		{"automation_delete", "Delete an automation"},
	} {
		handler := s.actionHandler(action.name)
		s.server.AddTool(mcp.NewTool(action.name,
			mcp.WithDescription(action.desc),
			mcp.WithString("automation_id",
				mcp.Required(),
				mcp.Description("Automation ID"),
			),
		), handler)
	}

	s.server.AddTool(mcp.NewTool("execution_list",
		mcp.WithDescription("Show the run history of an automation, most recent first"),
		mcp.WithString("automation_id",
			mcp.Required(),
			mcp.Description("Automation ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of runs to return, default 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleExecutions)

	s.server.AddTool(mcp.NewTool("cron_describe",
		mcp.WithDescription("Describe a cron expression in plain English and preview its next fire times"),
		mcp.WithString("cron",
			mcp.Required(),
			mcp.Description("Cron expression"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone, default UTC"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of fire times to preview, default 5"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), s.handleCronDescribe)

	s.logger.Info("MCP tools registered", "count", 11)
}

func (s *MCPServer) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := s.dash.Registry

	if statusStr := mcp.ParseString(request, "status", ""); statusStr != "" {
		var filter *core.AutomationStatus
		if statusStr != "all" {
			st := core.AutomationStatus(statusStr)
			if !st.Valid() {
				return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", statusStr)), nil
			}
			filter = &st
		}
		if sameFilter(reg.StatusFilter(), filter) {
			if err := reg.RefetchNow(ctx); err != nil {
				return errorResult(err), nil
			}
		} else {
			// The restarted session is already fetching with the new filter.
			s.dash.SetStatusFilter(s.dash.Context(), filter)
			if err := reg.WaitLoaded(ctx); err != nil {
				return errorResult(err), nil
			}
		}
	}

	items := reg.Automations()
	if len(items) == 0 {
		if e := reg.Err(); e != nil {
			return mcp.NewToolResultError("Failed to load automations: " + e.Message), nil
		}
		return mcp.NewToolResultText("No automations found"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %d automations:\n\n", len(items), reg.Total())
	for _, a := range items {
		fmt.Fprintf(&b, "[%s] %s  %s\n", a.Status, a.ID, a.Name)
		fmt.Fprintf(&b, "  Schedule: %s\n", core.DescribeSchedule(a))
		if a.NextRunAt != nil && a.Status == core.AutomationStatusActive {
			fmt.Fprintf(&b, "  Next run: %s\n", formatTime(a.NextRunAt))
		}
		b.WriteString("\n")
	}
	if e := reg.Err(); e != nil {
		fmt.Fprintf(&b, "Warning: last refresh failed: %s\n", e.Message)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "automation_id", "")
	a, err := s.lookup(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(describeAutomation(*a)), nil
}

func (s *MCPServer) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := engine.Input{
		Name:           mcp.ParseString(request, "name", ""),
		Instruction:    mcp.ParseString(request, "instruction", ""),
		TriggerType:    core.TriggerType(mcp.ParseString(request, "trigger_type", string(core.TriggerTypeCron))),
		CronExpression: mcp.ParseString(request, "cron", ""),
		Timezone:       mcp.ParseString(request, "timezone", ""),
		AgentMode:      core.AgentMode(mcp.ParseString(request, "agent_mode", string(core.AgentModeChat))),
		WorkspaceID:    mcp.ParseString(request, "workspace_id", ""),
	}
	if runAt := mcp.ParseString(request, "run_at", ""); runAt != "" {
		t, err := time.Parse(time.RFC3339, runAt)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run_at must be an RFC 3339 time: %v", err)), nil
		}
		in.NextRunAt = &t
	}
	if n := mcp.ParseFloat64(request, "max_failures", 0); n > 0 {
		in.MaxFailures = strconv.Itoa(int(n))
	}

	a, err := s.dash.Orchestrator.Create(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	s.logger.Info("automation created", "automation_id", a.ID)
	return mcp.NewToolResultText(fmt.Sprintf("Automation created\nID: %s\nSchedule: %s", a.ID, core.DescribeSchedule(*a))), nil
}

func (s *MCPServer) handleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "automation_id", "")
	current, err := s.lookup(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}

	in := inputOf(*current)
	if v := mcp.ParseString(request, "name", ""); v != "" {
		in.Name = v
	}
	if v := mcp.ParseString(request, "instruction", ""); v != "" {
		in.Instruction = v
	}
	if v := mcp.ParseString(request, "cron", ""); v != "" {
		in.TriggerType = core.TriggerTypeCron
		in.CronExpression = v
	}
	if v := mcp.ParseString(request, "timezone", ""); v != "" {
		in.Timezone = v
	}

	a, err := s.dash.Orchestrator.Update(ctx, id, in)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Automation updated: %s\nSchedule: %s", a.ID, core.DescribeSchedule(*a))), nil
}

func (s *MCPServer) actionHandler(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "automation_id", "")
		orch := s.dash.Orchestrator

		switch tool {
		case "automation_pause":
			a, err := orch.Pause(ctx, id)
			if err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Automation paused: %s", a.ID)), nil
		case "automation_resume":
			a, err := orch.Resume(ctx, id)
			if err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Automation resumed: %s\nNext run: %s", a.ID, formatTime(a.NextRunAt))), nil
		case "automation_trigger":
			e, err := orch.Trigger(ctx, id)
			if err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Run started\nAutomation ID: %s\nExecution ID: %s", id, e.ID)), nil
		default:
			if err := s.dash.Delete(ctx, id); err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Automation deleted: %s", id)), nil
		}
	}
}

func (s *MCPServer) handleExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "automation_id", "")
	limit := int(mcp.ParseFloat64(request, "limit", 20))

	page, err := s.api.ListExecutions(ctx, id, limit, 0)
	if err != nil {
		return errorResult(engine.Normalize("list executions", err)), nil
	}
	if len(page.Items) == 0 {
		return mcp.NewToolResultText("No runs yet"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %d runs:\n\n", len(page.Items), page.Total)
	for _, e := range page.Items {
		fmt.Fprintf(&b, "[%s] %s\n", e.Status, e.ID)
		if e.StartedAt != nil {
			fmt.Fprintf(&b, "    Started: %s\n", formatTime(e.StartedAt))
		}
		if d, ok := e.Duration(); ok {
			fmt.Fprintf(&b, "    Took: %s\n", d.Round(time.Second))
		}
		if e.ErrorMessage != nil {
			fmt.Fprintf(&b, "    Error: %s\n", truncateString(*e.ErrorMessage, 200))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleCronDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schedule := core.Schedule{
		Type:           core.TriggerTypeCron,
		CronExpression: mcp.ParseString(request, "cron", ""),
		Timezone:       mcp.ParseString(request, "timezone", ""),
	}
	count := int(mcp.ParseFloat64(request, "count", 5))

	times, err := schedule.Upcoming(time.Now(), count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid cron expression: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cron expression: %s\n", schedule.CronExpression)
	fmt.Fprintf(&b, "Meaning: %s\n", schedule.Label())
	fmt.Fprintf(&b, "Timezone: %s\n\n", schedule.Location())
	b.WriteString("Next fire times:\n")
	for i, t := range times {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, t.Format(timeLayout))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// lookup prefers the polled collection and falls back to the API.
func (s *MCPServer) lookup(ctx context.Context, id string) (*core.Automation, error) {
	if a, ok := s.dash.Registry.Find(id); ok {
		return &a, nil
	}
	a, err := s.api.GetAutomation(ctx, id)
	if err != nil {
		return nil, engine.Normalize("get automation", err)
	}
	return a, nil
}

func inputOf(a core.Automation) engine.Input {
	in := engine.Input{
		Name:           a.Name,
		Description:    a.Description,
		TriggerType:    a.TriggerType,
		CronExpression: a.CronExpression,
		NextRunAt:      a.NextRunAt,
		Timezone:       a.Timezone,
		AgentMode:      a.AgentMode,
		WorkspaceID:    a.WorkspaceID,
		Instruction:    a.Instruction,
		ThreadStrategy: a.ThreadStrategy,
	}
	if a.MaxFailures > 0 {
		in.MaxFailures = strconv.Itoa(a.MaxFailures)
	}
	return in
}

func describeAutomation(a core.Automation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automation ID: %s\n", a.ID)
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	fmt.Fprintf(&b, "Status: %s\n", a.Status)
	fmt.Fprintf(&b, "Schedule: %s\n", core.DescribeSchedule(a))
	if a.TriggerType == core.TriggerTypeCron {
		fmt.Fprintf(&b, "Cron: %s\n", a.CronExpression)
	}
	fmt.Fprintf(&b, "Agent mode: %s\n", a.AgentMode)
	if a.WorkspaceID != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", a.WorkspaceID)
	}
	fmt.Fprintf(&b, "Instruction: %s\n", truncateString(a.Instruction, 200))
	fmt.Fprintf(&b, "Failures: %d/%d\n", a.FailureCount, a.MaxFailures)
	if a.LastRunAt != nil {
		fmt.Fprintf(&b, "Last run: %s\n", formatTime(a.LastRunAt))
	}
	if a.NextRunAt != nil {
		fmt.Fprintf(&b, "Next run: %s\n", formatTime(a.NextRunAt))
	}
	return b.String()
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, engine.ErrBusy) {
		return mcp.NewToolResultError("Another change is still in progress, try again shortly")
	}
	e := engine.Normalize("request", err)
	switch e.Kind {
	case engine.KindRateLimited:
		if e.RetryAfter > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("Rate limited: %s (retry in %s)", e.Message, e.RetryAfter.Round(time.Second)))
		}
		return mcp.NewToolResultError("Rate limited: " + e.Message)
	case engine.KindValidation:
		return mcp.NewToolResultError("Invalid request: " + e.Message)
	case engine.KindServer:
		return mcp.NewToolResultError("Automation API error: " + e.Message)
	default:
		return mcp.NewToolResultError("Automation API unreachable: " + e.Message)
	}
}

func sameFilter(a, b *core.AutomationStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
