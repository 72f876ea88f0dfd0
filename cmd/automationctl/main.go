// Command automationctl inspects and manages automations from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"automationdash/internal/client"
	"automationdash/internal/logging"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load() // optional

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "automationctl",
		Usage:                 "Inspect and manage scheduled agent automations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Automation API base URL",
				Value:   "http://127.0.0.1:8000",
				Sources: cli.EnvVars("AUTODASH_API_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for the Automation API",
				Sources: cli.EnvVars("AUTODASH_API_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Per-request timeout",
				Value:   15 * time.Second,
				Sources: cli.EnvVars("AUTODASH_API_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("AUTODASH_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored status output",
			},
		},
		Commands: []*cli.Command{
			newDescribeCommand(),
			newListCommand(),
			newExecutionsCommand(),
			newCreateCommand(),
			newLifecycleCommand("pause", "Pause an active automation"),
			newLifecycleCommand("resume", "Resume a paused automation"),
			newLifecycleCommand("trigger", "Start a run now"),
			newLifecycleCommand("delete", "Delete an automation"),
		},
	}
}

func newClient(command *cli.Command) (*client.Client, error) {
	logger := logging.NewTo(os.Stderr, command.String("log-level"))
	return client.New(command.String("api-url"), command.String("token"),
		client.WithTimeout(command.Duration("timeout")),
		client.WithLogger(logger),
	)
}
