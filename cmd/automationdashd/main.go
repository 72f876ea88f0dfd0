package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"automationdash/internal/api"
	"automationdash/internal/client"
	"automationdash/internal/config"
	"automationdash/internal/core"
	"automationdash/internal/engine"
	"automationdash/internal/logging"
	dashmcp "automationdash/internal/mcp"
	"automationdash/internal/metrics"
	"automationdash/internal/notify"
	"automationdash/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	// stdout carries the MCP protocol in stdio mode.
	logger := logging.New(cfg.LogLevel)
	if cfg.Mode != config.ModeHTTP {
		logger = logging.NewTo(os.Stderr, cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient, err := client.New(cfg.API.URL, cfg.API.Token,
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(logger),
	)
	if err != nil {
		logger.Error("create api client", "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	dash := engine.NewDashboard(apiClient, engine.Config{
		AutomationInterval: cfg.Poll.AutomationInterval,
		ExecutionInterval:  cfg.Poll.ExecutionInterval,
		AutomationPageSize: cfg.Poll.AutomationPageSize,
		ExecutionPageSize:  cfg.Poll.ExecutionPageSize,
	}, engine.WithLogger(logger), engine.WithObserver(m))
	m.ObserveOrchestrator(dash.Orchestrator)

	storeInst, err := store.Open(ctx, cfg.StateDir, cfg.ExecutionRetention)
	if err != nil {
		logger.Warn("snapshot cache disabled", "err", err)
	} else {
		defer storeInst.Close()
		dash.UseSnapshots(storeInst)
	}

	watcher := engine.NewWatcher(buildNotifier(cfg, logger), engine.WithLogger(logger))
	watcher.Attach(ctx, dash.Registry)
	defer watcher.Wait()

	dash.Start(ctx)
	defer dash.Stop()

	mcpServer := dashmcp.NewMCPServer(dash, apiClient, logger)

	switch cfg.Mode {
	case config.ModeMCP:
		runMCP(ctx, mcpServer, logger)
	default:
		runHTTP(ctx, cfg, dash, mcpServer, m, logger)
	}
	logger.Info("shutdown complete")
}

// buildNotifier falls back to a no-op notifier; transitions are still logged.
func buildNotifier(cfg *config.Config, logger *slog.Logger) engine.Notifier {
	if !cfg.Notification.Bark.Enabled {
		return &notify.NoOpNotifier{}
	}
	bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
	if err != nil {
		logger.Warn("bark notifications disabled", "err", err)
		return &notify.NoOpNotifier{}
	}
	return notify.NewMultiNotifier(bark)
}

// runMCP serves MCP over stdio until stdin closes or a signal arrives.
func runMCP(ctx context.Context, mcpServer *dashmcp.MCPServer, logger *slog.Logger) {
	mcpErr := make(chan error, 1)
	go func() { mcpErr <- mcpServer.Run() }()

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-mcpErr:
		if err != nil {
			logger.Error("mcp server error", "err", err)
		}
	}
}

// runHTTP serves the dashboard API. In both mode MCP is also served on stdio
// and on /mcp.
func runHTTP(ctx context.Context, cfg *config.Config, dash *engine.Dashboard, mcpServer *dashmcp.MCPServer, m *metrics.Metrics, logger *slog.Logger) {
	palette := core.DefaultPalette().Without(cfg.Display.NeutralStatuses...)
	server := api.NewServer(cfg.Addr, dash, logger, api.Options{
		AuthToken:  cfg.AuthToken,
		MCPHandler: mcpServer.HTTPHandler(),
		Metrics:    m.Handler(),
		Palette:    palette,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	mcpErr := make(chan error, 1)
	if cfg.Mode == config.ModeBoth {
		go func() {
			if err := mcpServer.Run(); err != nil {
				mcpErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
}
