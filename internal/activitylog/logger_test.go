package activitylog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCommandSubmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l := New(true, path, "sess-123", LevelInfo)
	defer l.Close()

	l.CommandSubmitted(7, "ls -la")

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var e struct {
		SessionID     string `json:"session_id"`
		Event         string `json:"event"`
		InteractionID int64  `json:"interaction_id"`
		Command       string `json:"command"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.SessionID != "sess-123" {
		t.Errorf("session_id = %q, want %q", e.SessionID, "sess-123")
	}
	if e.Event != "command_submitted" {
		t.Errorf("event = %q, want %q", e.Event, "command_submitted")
	}
	if e.InteractionID != 7 {
		t.Errorf("interaction_id = %d, want 7", e.InteractionID)
	}
	if e.Command != "ls -la" {
		t.Errorf("command = %q, want %q", e.Command, "ls -la")
	}
}

func TestLevelGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l := New(true, path, "sess", LevelWarn)
	defer l.Close()

	l.CommandSubmitted(1, "hidden")   // info, below the gate
	l.ReaderError(1, "output", "eio") // debug, below the gate
	l.ParseError(1, "syntax error")   // warn, passes
	l.SpawnFailed(1, "exec: no ls")   // error, passes

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "parse_error") {
		t.Errorf("line 0 = %q, want parse_error", lines[0])
	}
	if !strings.Contains(lines[1], "spawn_failed") {
		t.Errorf("line 1 = %q, want spawn_failed", lines[1])
	}
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l := New(false, path, "sess", LevelDebug)
	l.JobExited(1, 0)
	l.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("disabled logger created the file (err=%v)", err)
	}
}

func TestUnwritablePathIsSilent(t *testing.T) {
	l := New(true, filepath.Join(t.TempDir(), "no", "such", "dir", "x.log"), "sess", LevelInfo)
	defer l.Close()
	// Must not panic or error.
	l.SessionStart(24, 80)
	l.SessionSummary(3, 2*time.Second)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
