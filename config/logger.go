package config

import (
	"io"
	"log/slog"

	"github.com/go-chi/httplog/v3"
)

// NewLogger builds the process logger in the configured format. Attributes
// follow the ECS schema so request logs and engine logs share field names.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	schema := httplog.SchemaECS.Concise(cfg.LogFormat == "text")
	opts := &slog.HandlerOptions{Level: cfg.LogLevel, ReplaceAttr: schema.ReplaceAttr}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
