package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/kanban"
	"github.com/nhle/workboard/internal/model"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a configuration file with the default settings",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"no-store": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists; pass --force to overwrite", configPath)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		cfg := model.DefaultAppConfig()
		for _, col := range kanban.DefaultColumns() {
			cfg.Board.Columns = append(cfg.Board.Columns, model.ColumnConfig{
				ID:     col.ID,
				Title:  col.Title,
				Status: string(col.Status),
			})
		}
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
