package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// New returns a structured logger with the given level and format.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "text" (default "text").
func New(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// Printf adapts a slog.Logger to the formatted Logger interface the library
// packages accept.
type Printf struct {
	L *slog.Logger
}

func (p Printf) Debugf(format string, args ...any) { p.L.Debug(fmt.Sprintf(format, args...)) }
func (p Printf) Infof(format string, args ...any)  { p.L.Info(fmt.Sprintf(format, args...)) }
func (p Printf) Warnf(format string, args ...any)  { p.L.Warn(fmt.Sprintf(format, args...)) }
func (p Printf) Errorf(format string, args ...any) { p.L.Error(fmt.Sprintf(format, args...)) }
