package engine

import (
	"io"
	"log/slog"
	"time"

	"automationdash/internal/poll"
)

// Config holds polling intervals and page sizes.
type Config struct {
	AutomationInterval time.Duration
	ExecutionInterval  time.Duration
	AutomationPageSize int
	ExecutionPageSize  int
}

// DefaultConfig returns the dashboard defaults: automations every 30s,
// executions every 15s.
func DefaultConfig() Config {
	return Config{
		AutomationInterval: 30 * time.Second,
		ExecutionInterval:  15 * time.Second,
		AutomationPageSize: 50,
		ExecutionPageSize:  20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AutomationInterval <= 0 {
		c.AutomationInterval = d.AutomationInterval
	}
	if c.ExecutionInterval <= 0 {
		c.ExecutionInterval = d.ExecutionInterval
	}
	if c.AutomationPageSize <= 0 {
		c.AutomationPageSize = d.AutomationPageSize
	}
	if c.ExecutionPageSize <= 0 {
		c.ExecutionPageSize = d.ExecutionPageSize
	}
	return c
}

type settings struct {
	logger   *slog.Logger
	observer poll.Observer
}

// Option configures engine components.
type Option func(*settings)

// WithLogger sets the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver forwards polling events to observer.
func WithObserver(observer poll.Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) pollOptions() []poll.Option {
	return []poll.Option{poll.WithLogger(s.logger), poll.WithObserver(s.observer)}
}
