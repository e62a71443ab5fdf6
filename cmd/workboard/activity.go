package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity <task-id>",
	Short: "Show a task's status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := current.ctx(cmd)
		if _, err := current.store.GetTask(ctx, args[0]); err != nil {
			return err
		}
		entries, err := current.store.GetActivity(ctx, args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tWHO\tOPERATION\tFROM\tTO")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.OccurredAt.Local().Format("2006-01-02 15:04"), e.ActorID, e.Operation, e.FromStatus, e.ToStatus)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
}
