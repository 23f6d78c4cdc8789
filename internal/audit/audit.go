// Package audit provides structured event logging for the gateway, built on
// zerolog. It replaces the teacher's hand-rolled logJSON/AuditLogger with a
// real structured-logging library while keeping the same event shape: one
// line per request-lifecycle event (preview, approval, rate limit, blocked,
// succeeded, failed, breaker transition, connection restart, identifier
// rejection).
package audit

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Event names mirror the events enumerated in the gateway's external
// interface: query previewed, approval denied, rate-limit exceeded, query
// approved, query blocked, query succeeded, query failed, circuit
// opened/closed, connection restarted, identifier rejected.
const (
	EventQueryPreviewed     = "query_previewed"
	EventApprovalDenied     = "approval_denied"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventQueryApproved      = "query_approved"
	EventQueryBlocked       = "query_blocked"
	EventQuerySucceeded     = "query_succeeded"
	EventQueryFailed        = "query_failed"
	EventCircuitOpened      = "circuit_opened"
	EventCircuitClosed      = "circuit_closed"
	EventConnectionRestarted = "connection_restarted"
	EventIdentifierRejected = "identifier_rejected"
)

// Logger wraps a zerolog.Logger configured for either JSON or console
// output, writing to stderr (so stdout stays reserved for the MCP stdio
// transport's framing) and optionally tee'd to an audit log file.
type Logger struct {
	zl zerolog.Logger
}

// Config selects the logger's output shape and destination.
type Config struct {
	JSON  bool
	Level string
	Path  string // optional audit log file; empty disables the file sink
}

// New constructs a Logger per cfg. When Path is set, events are written to
// both stderr and the file.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

// Event logs one structured audit line. fields may be nil.
func (l *Logger) Event(name string, fields map[string]any) {
	ev := l.zl.Info().Str("event", name)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(name)
}

// Error logs an error-level structured line.
func (l *Logger) Error(name string, err error, fields map[string]any) {
	ev := l.zl.Error().Str("event", name).Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(name)
}

// QueryTimer tracks elapsed time for a single pipeline call, mirroring the
// teacher's QueryTimer helper.
type QueryTimer struct {
	start time.Time
}

// NewQueryTimer starts a timer.
func NewQueryTimer() QueryTimer {
	return QueryTimer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds since the timer started.
func (t QueryTimer) ElapsedMs() int64 {
	return time.Since(t.start).Milliseconds()
}
