package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/kanban"
	"github.com/nhle/workboard/internal/notify"
	appsync "github.com/nhle/workboard/internal/sync"
	"github.com/nhle/workboard/internal/ui/board"
)

var boardCmd = &cobra.Command{
	Use:         "board <project-id>",
	Short:       "Open the kanban board for a project",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"tui": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		columns, err := kanban.ColumnsFromConfig(a.cfg.Board.Columns)
		if err != nil {
			return err
		}

		cache := appsync.New(
			appsync.NewStoreRemote(a.store, a.coordinator),
			appsync.WithRemoteTimeout(a.cfg.Sync.RemoteTimeout()),
			appsync.WithClock(a.clock),
			appsync.WithLogger(a.logger.With("component", "sync")),
		)
		defer cache.Close()

		if a.cfg.Notify.Enabled {
			logger := a.logger.With("component", "notify")
			rdb := notify.NewClient(a.cfg.Notify)
			defer rdb.Close()
			publisher := notify.NewRedisPublisher(rdb, a.cfg.Notify.ChannelPrefix, logger)
			stop := cache.Observe(publisher.Observer())
			defer stop()
			go func() {
				if err := notify.Listen(ctx, rdb, publisher.Prefix(), cache, logger); err != nil {
					logger.Warn("change listener stopped", "error", err)
				}
			}()
		}

		return runBoard(cache, columns, args[0])
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cache *appsync.Cache, columns []kanban.Column, projectID string) error {
	a := current
	b := kanban.NewBoard(kanban.NewReconciler(columns), cache, a.clock)
	m := board.New(cache, b, projectID, a.actor)

	a.logger.Info("opening board", "project_id", projectID, "actor", a.actor)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running board: %w", err)
	}
	return nil
}
