// Package logger provides the process-wide structured logger. It wraps
// log/slog with a colored text handler for terminals, a JSON handler
// for machine consumption, and helpers that carry request-scoped
// correlation fields through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	levelVar slog.LevelVar

	mu       sync.RWMutex
	out      io.Writer = os.Stdout
	format             = "text"
	useColor           = true
	slogger  *slog.Logger
)

func init() {
	if f, ok := out.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	mu.Lock()
	rebuild()
	mu.Unlock()
}

// rebuild swaps the underlying handler. Callers must hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = newTextHandler(out, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init configures the logger from the given Config. An unset field
// leaves the corresponding setting unchanged.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if cfg.Output != "" {
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			out = os.Stdout
			useColor = isTerminal(os.Stdout.Fd())
		case "stderr":
			out = os.Stderr
			useColor = isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			out = f
			useColor = false
		}
	}

	if lvl, ok := parseLevel(cfg.Level); ok {
		levelVar.Set(lvl)
	}
	if f := strings.ToLower(cfg.Format); f == "text" || f == "json" {
		format = f
	}

	rebuild()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Intended
// for tests.
func InitWithWriter(w io.Writer, level, formatName string, colored bool) {
	mu.Lock()
	defer mu.Unlock()

	out = w
	useColor = colored
	if lvl, ok := parseLevel(level); ok {
		levelVar.Set(lvl)
	}
	if f := strings.ToLower(formatName); f == "text" || f == "json" {
		format = f
	}
	rebuild()
}

// SetLevel changes the minimum level at runtime. Unknown level names
// are ignored.
func SetLevel(level string) {
	if lvl, ok := parseLevel(level); ok {
		levelVar.Set(lvl)
	}
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level. Args are alternating key/value pairs.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs at info level. Args are alternating key/value pairs.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs at warn level. Args are alternating key/value pairs.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs at error level. Args are alternating key/value pairs.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// DebugCtx logs at debug level with the correlation fields stored in
// ctx prepended (see LogContext).
func DebugCtx(ctx context.Context, msg string, args ...any) {
	current().Debug(msg, contextArgs(ctx, args)...)
}

// InfoCtx logs at info level with correlation fields from ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	current().Info(msg, contextArgs(ctx, args)...)
}

// WarnCtx logs at warn level with correlation fields from ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	current().Warn(msg, contextArgs(ctx, args)...)
}

// ErrorCtx logs at error level with correlation fields from ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	current().Error(msg, contextArgs(ctx, args)...)
}

// contextArgs prepends LogContext fields so they render before the
// call-site fields.
func contextArgs(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	prefixed := make([]any, 0, 8+len(args))
	if lc.RequestID != "" {
		prefixed = append(prefixed, KeyRequestID, lc.RequestID)
	}
	if lc.ClientIP != "" {
		prefixed = append(prefixed, KeyClientIP, lc.ClientIP)
	}
	if lc.UserID != "" {
		prefixed = append(prefixed, KeyUserID, lc.UserID)
	}
	if lc.Role != "" {
		prefixed = append(prefixed, KeyRole, lc.Role)
	}
	return append(prefixed, args...)
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}
