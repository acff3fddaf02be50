// Package logger sets up the process-wide slog logger from the environment.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Config selects the log level and output format.
// Env vars: LOG_LEVEL (debug|info|warn|error), LOG_FORMAT (text|json).
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseConfig reads Config from environment variables.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// New builds a logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Setup initializes the default logger on stderr. An unparsable environment
// falls back to the defaults.
func Setup() *slog.Logger {
	cfg, err := ParseConfig()
	if err != nil {
		cfg = Config{Level: "info", Format: "text"}
	}
	l := New(cfg, os.Stderr)

	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// L returns the default logger, initializing it on first use.
func L() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Setup()
	}
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
