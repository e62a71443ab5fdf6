// workboard manages projects and tasks from the terminal.
//
// Usage:
//
//	workboard board <project-id>
//	workboard project create|status|show ...
//	workboard task create|status|check|add-item|attach|show ...
//	workboard activity <task-id>
//	workboard login <user-id> | logout | whoami
//	workboard config init
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/identity"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

var (
	configPath string
	dbPath     string
	debug      bool
)

// app holds what every subcommand needs. It is built lazily by
// PersistentPreRunE so that help output never touches the database.
type app struct {
	cfg         *model.AppConfig
	logger      *slog.Logger
	store       *store.SQLiteStore
	coordinator *lifecycle.Coordinator
	clock       clock.Clock
	identity    *identity.Resolver
	actor       string
	logFile     io.Closer
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "workboard",
	Short:         "Projects, tasks and a kanban board in the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["no-store"] == "true" {
			return nil
		}
		a, err := newApp(cmd.Annotations["tui"] == "true")
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		return current.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if current != nil {
			_ = current.Close()
		}
		os.Exit(exitCode(err))
	}
}

func newApp(tui bool) (*app, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	a := &app{cfg: cfg, clock: clock.Real(), identity: identity.NewResolver()}

	// The board owns the terminal, so its logs go to a file.
	var out io.Writer = os.Stderr
	if tui {
		f, err := openLogFile(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		out = f
	}
	a.logger = newLogger(cfg.Log, out)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.coordinator = lifecycle.NewCoordinator(s, a.clock, a.logger.With("component", "coordinator"))

	actor, err := a.identity.Current()
	if err != nil {
		a.logger.Warn("reading identity from keyring", "error", err)
	}
	a.actor = actor
	return a, nil
}

// ctx attributes store writes made under it to the acting user.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return store.WithActor(cmd.Context(), a.actor)
}

func (a *app) Close() error {
	var firstErr error
	if a.store != nil {
		firstErr = a.store.Close()
		a.store = nil
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logFile = nil
	}
	return firstErr
}

func newLogger(cfg model.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openLogFile(dbPath string) (*os.File, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "workboard.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// exitCode maps error classes to distinct exit statuses for scripts.
func exitCode(err error) int {
	switch {
	case model.IsNotFound(err):
		return 3
	case model.IsConflict(err):
		return 4
	case model.IsUnavailable(err):
		return 5
	case model.IsInvalidStatus(err):
		return 2
	}
	return 1
}
