package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds settings of the dashboard HTTP server.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// APIConfig points at the Automation API.
type APIConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// PollConfig holds polling intervals and page sizes.
type PollConfig struct {
	AutomationInterval time.Duration
	ExecutionInterval  time.Duration
	AutomationPageSize int
	ExecutionPageSize  int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// DisplayConfig holds presentation settings.
type DisplayConfig struct {
	// NeutralStatuses are rendered without an alert tone.
	NeutralStatuses []string
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	API          APIConfig
	Poll         PollConfig
	Log          LogConfig
	Notification NotificationConfig
	Display      DisplayConfig

	// Mode selects the served surfaces: http, mcp (stdio) or both.
	Mode string

	StateDir string
	// ExecutionRetention is how many automations keep an execution snapshot.
	ExecutionRetention int
	ShutdownGrace      time.Duration

	// Flat mirrors of nested fields
	Addr      string
	LogLevel  string
	AuthToken string
}

const (
	ModeHTTP = "http"
	ModeMCP  = "mcp"
	ModeBoth = "both"
)

const (
	defaultAddr               = "127.0.0.1:7080"
	defaultLogLevel           = "info"
	defaultAPIURL             = "http://127.0.0.1:8000"
	defaultAPITimeout         = 15 * time.Second
	defaultAutomationInterval = 30 * time.Second
	defaultExecutionInterval  = 15 * time.Second
	defaultAutomationPageSize = 50
	defaultExecutionPageSize  = 20
	defaultExecutionRetention = 20
	defaultShutdownGrace      = 5 * time.Second
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList returns a comma separated environment variable as a list
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Parse reads configuration for the daemon from .env files, the environment
// and the process command line.
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "automationdash", ".env"))
	}
	_ = godotenv.Load(envFiles...) // Ignore error - file is optional

	return Load(os.Args[1:])
}

// Load builds a Config from the environment and args.
// Priority: CLI flags > Environment variables > defaults
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("AUTODASH_ADDR", defaultAddr),
			AuthToken: getEnvString("AUTODASH_AUTH_TOKEN", ""),
		},
		API: APIConfig{
			URL:     getEnvString("AUTODASH_API_URL", defaultAPIURL),
			Token:   getEnvString("AUTODASH_API_TOKEN", ""),
			Timeout: getEnvDuration("AUTODASH_API_TIMEOUT", defaultAPITimeout),
		},
		Poll: PollConfig{
			AutomationInterval: getEnvDuration("AUTODASH_AUTOMATION_INTERVAL", defaultAutomationInterval),
			ExecutionInterval:  getEnvDuration("AUTODASH_EXECUTION_INTERVAL", defaultExecutionInterval),
			AutomationPageSize: getEnvInt("AUTODASH_AUTOMATION_PAGE_SIZE", defaultAutomationPageSize),
			ExecutionPageSize:  getEnvInt("AUTODASH_EXECUTION_PAGE_SIZE", defaultExecutionPageSize),
		},
		Log: LogConfig{
			Level: getEnvString("AUTODASH_LOG_LEVEL", defaultLogLevel),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("AUTODASH_BARK_URL", ""),
				Enabled: getEnvBool("AUTODASH_BARK_ENABLED", false),
			},
		},
		Display: DisplayConfig{
			NeutralStatuses: getEnvList("AUTODASH_NEUTRAL_STATUSES", nil),
		},
		Mode:               getEnvString("AUTODASH_MODE", ModeHTTP),
		StateDir:           getEnvString("AUTODASH_STATE_DIR", ""),
		ExecutionRetention: getEnvInt("AUTODASH_EXECUTION_RETENTION", defaultExecutionRetention),
		ShutdownGrace:      getEnvDuration("AUTODASH_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	fs := flag.NewFlagSet("automationdashd", flag.ContinueOnError)
	var addr, logLevel, apiURL, stateDir, mode string
	var shutdownGrace time.Duration

	fs.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	fs.StringVar(&apiURL, "api-url", "", "Automation API base URL")
	fs.StringVar(&stateDir, "state-dir", "", "Directory for the snapshot cache")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&mode, "mode", "", "Served surfaces: http, mcp or both")
	fs.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if mode != "" {
		cfg.Mode = mode
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	switch cfg.Mode {
	case ModeHTTP, ModeMCP, ModeBoth:
	default:
		return nil, fmt.Errorf("invalid mode %q: want http, mcp or both", cfg.Mode)
	}

	cfg.Addr = cfg.Server.Addr
	cfg.AuthToken = cfg.Server.AuthToken
	cfg.LogLevel = cfg.Log.Level

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}

	if cfg.ExecutionRetention < 1 {
		cfg.ExecutionRetention = defaultExecutionRetention
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "automationdash")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
