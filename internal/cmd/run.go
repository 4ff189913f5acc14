package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bite/internal/activitylog"
	"bite/internal/config"
	"bite/internal/history"
	"bite/internal/presenter"
	"bite/internal/session"
)

// sessionExitCode holds the exit code requested by the shell's exit
// builtin; main reads it through ExitCode and maps it onto the process
// exit status.
var sessionExitCode int

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session (the default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
	}
}

func runInteractive(cmd *cobra.Command) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin is not a terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	sess, hist, log, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	p := presenter.New(sess, hist)
	code, err := p.Run()
	if err != nil {
		return err
	}
	sessionExitCode = code
	return nil
}

// buildSession assembles the logger, history store, and session from the
// effective configuration.
func buildSession(cfg *config.Config) (*session.Session, *history.Store, *activitylog.Logger, error) {
	logPath := cfg.LogFile
	if logPath != "" {
		os.MkdirAll(filepath.Dir(logPath), 0o755)
	}

	histPath := cfg.HistoryFile
	if histPath == "" {
		histPath = history.DefaultPath()
	}
	hist, err := history.Open(histPath, cfg.HistoryLimit)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open history: %w", err)
	}

	sessionID := uuid.New().String()
	log := activitylog.New(logPath != "", logPath, sessionID, activitylog.ParseLevel(cfg.LogLevel))

	// Dimensions are placeholders; the presenter resizes to the real
	// terminal before the first frame.
	sess := session.New(24, 80, cfg.Scrollback, log)
	sess.ID = sessionID

	sess.Interpreter().Pipefail = cfg.Pipefail
	sess.OnHistoryAdd = func(command string) {
		hist.Add(command)
	}
	return sess, hist, log, nil
}

// ExitCode returns the exit code the finished session requested.
func ExitCode() int { return sessionExitCode }
