// Package logger provides the slog-based application logger and common
// attribute helpers used across all modules.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Provide(NewHTTPLogger),
)

// Scope returns a "scope" attribute identifying the emitting component.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error returns an "error" attribute carrying the error value.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger creates the application logger. The level is read from LOG_LEVEL
// (debug, info, warn/warning, error; default info). When GO_ENV=production a
// JSON handler is used, otherwise a human-readable text handler.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info":
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// HTTPLogger writes one line per request to a dedicated access log file.
// When HTTP_LOG_FILE is unset it is a no-op.
type HTTPLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewHTTPLogger opens the access log file named by HTTP_LOG_FILE.
func NewHTTPLogger(log *slog.Logger) *HTTPLogger {
	path := os.Getenv("HTTP_LOG_FILE")
	if path == "" {
		return &HTTPLogger{}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn("cannot open http log file", Error(err), slog.String("path", path))
		return &HTTPLogger{}
	}
	return &HTTPLogger{file: f}
}

// LogRequest appends a single access log line.
func (l *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	if l.file == nil {
		return
	}
	line := fmt.Sprintf("%s %s %s %s %d %s %q %s\n",
		time.Now().UTC().Format(time.RFC3339), ip, method, uri, status, latency, userAgent, requestID)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(line)
}

// Close closes the underlying file, if any.
func (l *HTTPLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
