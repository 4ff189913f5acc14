// Package activitylog writes structured JSONL session activity to a log
// file. Logging is best-effort: failures never propagate to callers and
// nothing is ever surfaced on the UI.
package activitylog

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// Level gates which events are written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a BITE_LOG / config value to a Level. Unknown values
// default to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger appends one JSON object per line to a log file.
type Logger struct {
	mu        sync.Mutex
	enabled   bool
	level     Level
	file      *os.File
	sessionID string
}

// New opens (or creates) the log file at path. A disabled logger, or one
// whose file cannot be opened, swallows all events.
func New(enabled bool, path, sessionID string, level Level) *Logger {
	l := &Logger{enabled: enabled, level: level, sessionID: sessionID}
	if !enabled || path == "" {
		l.enabled = false
		return l
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		l.enabled = false
		return l
	}
	l.file = f
	return l
}

// Close closes the underlying file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.enabled = false
}

func (l *Logger) write(level Level, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || l.file == nil || level < l.level {
		return
	}
	entry := map[string]any{
		"ts":         time.Now().Format(time.RFC3339Nano),
		"session_id": l.sessionID,
		"event":      event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.file.Write(append(data, '\n'))
}

// SessionStart records session startup with the initial dimensions.
func (l *Logger) SessionStart(rows, cols int) {
	l.write(LevelInfo, "session_start", map[string]any{"rows": rows, "cols": cols})
}

// CommandSubmitted records a submitted command line.
func (l *Logger) CommandSubmitted(interactionID int64, command string) {
	l.write(LevelInfo, "command_submitted", map[string]any{
		"interaction_id": interactionID,
		"command":        command,
	})
}

// ParseError records a shell grammar error.
func (l *Logger) ParseError(interactionID int64, msg string) {
	l.write(LevelWarn, "parse_error", map[string]any{
		"interaction_id": interactionID,
		"error":          msg,
	})
}

// JobSpawned records a started job and its process group.
func (l *Logger) JobSpawned(interactionID int64, pgid int, stages int, pty bool) {
	l.write(LevelInfo, "job_spawned", map[string]any{
		"interaction_id": interactionID,
		"pgid":           pgid,
		"stages":         stages,
		"pty":            pty,
	})
}

// SpawnFailed records a fork/exec failure.
func (l *Logger) SpawnFailed(interactionID int64, errMsg string) {
	l.write(LevelError, "spawn_failed", map[string]any{
		"interaction_id": interactionID,
		"error":          errMsg,
	})
}

// JobExited records a job's final exit code.
func (l *Logger) JobExited(interactionID int64, code int) {
	l.write(LevelInfo, "job_exited", map[string]any{
		"interaction_id": interactionID,
		"exit_code":      code,
	})
}

// ReaderError records an I/O failure on a child stream. The reader exits
// afterwards; the waiter still observes the child.
func (l *Logger) ReaderError(interactionID int64, stream string, errMsg string) {
	l.write(LevelDebug, "reader_error", map[string]any{
		"interaction_id": interactionID,
		"stream":         stream,
		"error":          errMsg,
	})
}

// SignalSent records a user-initiated signal delivery.
func (l *Logger) SignalSent(interactionID int64, signal string) {
	l.write(LevelInfo, "signal_sent", map[string]any{
		"interaction_id": interactionID,
		"signal":         signal,
	})
}

// SessionSummary records final session counters before shutdown.
func (l *Logger) SessionSummary(interactions int, uptime time.Duration) {
	l.write(LevelInfo, "session_summary", map[string]any{
		"interactions": interactions,
		"uptime":       uptime.Round(time.Second).String(),
	})
}
