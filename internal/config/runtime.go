package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// ServerEnv configures the production app server from the environment.
type ServerEnv struct {
	Addr        string `env:"FFYYC_ADDR" envDefault:":8080"`
	Dist        string `env:"FFYYC_DIST" envDefault:"dist"`
	IntroRoutes bool   `env:"FFYYC_INTRO_ROUTES"`
	Debug       bool   `env:"FFYYC_DEBUG"`
}

// ParseServerEnv loads ServerEnv from environment variables.
func ParseServerEnv() (ServerEnv, error) {
	var cfg ServerEnv
	if err := env.Parse(&cfg); err != nil {
		return ServerEnv{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// NewLogger creates a structured text logger writing to w.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
