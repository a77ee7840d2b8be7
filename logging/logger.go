package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/use-agent/authcrawl/config"
)

// New builds a redacting logger from cfg. verbose forces debug level.
func New(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Init installs New(...) as the slog default.
func Init(w io.Writer, cfg config.LogConfig, verbose bool) {
	slog.SetDefault(New(w, cfg, verbose))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
