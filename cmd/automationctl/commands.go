package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/urfave/cli/v3"
)

func newDescribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Explain a cron expression and preview its next fire times",
		ArgsUsage: "<cron expression>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "timezone", Aliases: []string{"tz"}, Usage: "IANA timezone"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 5, Usage: "Fire times to preview"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			expr := command.Args().First()
			if command.Args().Len() > 1 {
				expr = joinArgs(command.Args().Slice())
			}
			if expr == "" {
				return fmt.Errorf("cron expression is required")
			}
			schedule := core.Schedule{Type: core.TriggerTypeCron, CronExpression: expr, Timezone: command.String("timezone")}
			times, err := schedule.Upcoming(time.Now(), int(command.Int("count")))
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, schedule.Label())
			for _, t := range times {
				fmt.Fprintf(os.Stdout, "  %s\n", t.Format(timeLayout))
			}
			return nil
		},
	}
}

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List automations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Only show automations with this status"},
			&cli.IntFlag{Name: "limit", Value: engine.DefaultConfig().AutomationPageSize},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			c, err := newClient(command)
			if err != nil {
				return err
			}
			q := core.AutomationQuery{Limit: int(command.Int("limit"))}
			if s := command.String("status"); s != "" {
				status := core.AutomationStatus(s)
				if !status.Valid() {
					return fmt.Errorf("unknown status %q", s)
				}
				q.Status = &status
			}
			page, err := c.ListAutomations(ctx, q)
			if err != nil {
				return describeError(engine.Normalize("list automations", err))
			}
			newRenderer(os.Stdout, !command.Bool("no-color")).automations(page)
			return nil
		},
	}
}

func newExecutionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "executions",
		Aliases:   []string{"runs"},
		Usage:     "Show the run history of an automation",
		ArgsUsage: "<automation id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: engine.DefaultConfig().ExecutionPageSize},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := requireID(command)
			if err != nil {
				return err
			}
			c, err := newClient(command)
			if err != nil {
				return err
			}
			page, err := c.ListExecutions(ctx, id, int(command.Int("limit")), 0)
			if err != nil {
				return describeError(engine.Normalize("list executions", err))
			}
			newRenderer(os.Stdout, !command.Bool("no-color")).executions(page)
			return nil
		},
	}
}

func newCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an automation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "instruction", Required: true},
			&cli.StringFlag{Name: "cron", Usage: "Cron expression for recurring runs"},
			&cli.StringFlag{Name: "at", Usage: "RFC 3339 time for a single run"},
			&cli.StringFlag{Name: "timezone", Aliases: []string{"tz"}},
			&cli.StringFlag{Name: "mode", Value: string(core.AgentModeChat), Usage: "chat, research, sandbox or code"},
			&cli.StringFlag{Name: "workspace", Usage: "Workspace for sandbox and code modes"},
			&cli.StringFlag{Name: "max-failures", Usage: "Failures before the automation is disabled"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			in, err := inputFromFlags(command)
			if err != nil {
				return err
			}
			payload := engine.ShapePayload(in)
			if err := engine.NewPayloadValidator().Validate("create automation", payload); err != nil {
				return describeError(engine.Normalize("create automation", err))
			}
			c, err := newClient(command)
			if err != nil {
				return err
			}
			a, err := c.CreateAutomation(ctx, payload)
			if err != nil {
				return describeError(engine.Normalize("create automation", err))
			}
			fmt.Fprintf(os.Stdout, "Created %s (%s)\n", a.ID, core.DescribeSchedule(*a))
			return nil
		},
	}
}

func inputFromFlags(command *cli.Command) (engine.Input, error) {
	in := engine.Input{
		Name:           command.String("name"),
		Instruction:    command.String("instruction"),
		TriggerType:    core.TriggerTypeCron,
		CronExpression: command.String("cron"),
		Timezone:       command.String("timezone"),
		AgentMode:      core.AgentMode(command.String("mode")),
		WorkspaceID:    command.String("workspace"),
		MaxFailures:    command.String("max-failures"),
	}
	if at := command.String("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return in, fmt.Errorf("--at must be an RFC 3339 time: %w", err)
		}
		in.TriggerType = core.TriggerTypeOnce
		in.NextRunAt = &t
	}
	return in, nil
}

func newLifecycleCommand(action, usage string) *cli.Command {
	return &cli.Command{
		Name:      action,
		Usage:     usage,
		ArgsUsage: "<automation id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := requireID(command)
			if err != nil {
				return err
			}
			c, err := newClient(command)
			if err != nil {
				return err
			}

			var result string
			switch action {
			case "pause":
				a, err := c.PauseAutomation(ctx, id)
				if err != nil {
					return describeError(engine.Normalize("pause automation", err))
				}
				result = fmt.Sprintf("Paused %s", a.ID)
			case "resume":
				a, err := c.ResumeAutomation(ctx, id)
				if err != nil {
					return describeError(engine.Normalize("resume automation", err))
				}
				result = fmt.Sprintf("Resumed %s, next run %s", a.ID, formatTime(a.NextRunAt))
			case "trigger":
				e, err := c.TriggerAutomation(ctx, id)
				if err != nil {
					return describeError(engine.Normalize("trigger automation", err))
				}
				result = fmt.Sprintf("Started execution %s", e.ID)
			case "delete":
				if err := c.DeleteAutomation(ctx, id); err != nil {
					return describeError(engine.Normalize("delete automation", err))
				}
				result = fmt.Sprintf("Deleted %s", id)
			}
			fmt.Fprintln(os.Stdout, result)
			return nil
		},
	}
}

func requireID(command *cli.Command) (string, error) {
	id := command.Args().First()
	if id == "" {
		return "", fmt.Errorf("automation id is required")
	}
	return id, nil
}
