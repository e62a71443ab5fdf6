package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
)

var (
	taskDescription string
	taskPriority    string
	taskDue         string
	taskAssignee    string
	taskItems       []string
	attachURL       string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and update tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <project-id> <title>",
	Short: "Create a task in the todo state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		t := model.NewTask(args[0], args[1], a.clock.Now())
		t.Description = taskDescription
		if taskPriority != "" {
			p, err := model.ParsePriority(taskPriority)
			if err != nil {
				return err
			}
			t.Priority = p
		}
		due, err := parseDate(taskDue)
		if err != nil {
			return err
		}
		t.DueDate = due
		if taskAssignee != "" {
			t.AssigneeID = &taskAssignee
		}
		for _, text := range taskItems {
			t, _, err = lifecycle.AddChecklistItem(t, text, a.clock.Now())
			if err != nil {
				return err
			}
		}

		created, err := a.store.CreateTask(a.ctx(cmd), t)
		if err != nil {
			return err
		}
		a.logger.Info("task created", "task_id", created.ID, "project_id", created.ProjectID)
		fmt.Fprintln(cmd.OutOrStdout(), created.ID)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Set a task's status directly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := model.ParseTaskStatus(args[1])
		if err != nil {
			return err
		}
		t, err := current.coordinator.SetTaskStatus(current.ctx(cmd), args[0], status)
		if err != nil {
			return err
		}
		return printTask(cmd, *t)
	},
}

var taskCheckCmd = &cobra.Command{
	Use:   "check <task-id> <item-number|item-id> [true|false]",
	Short: "Complete (or reopen) one checklist item",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		ctx := a.ctx(cmd)
		completed := true
		if len(args) == 3 {
			v, err := strconv.ParseBool(args[2])
			if err != nil {
				return &model.InvalidValueError{Field: "completed flag", Value: args[2]}
			}
			completed = v
		}

		task, err := a.store.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		itemID := resolveItem(*task, args[1])

		t, err := a.coordinator.ToggleChecklistItem(ctx, args[0], itemID, completed)
		if err != nil {
			return err
		}
		return printTask(cmd, *t)
	},
}

var taskAddItemCmd = &cobra.Command{
	Use:   "add-item <task-id> <text>",
	Short: "Append a checklist item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := current.coordinator.AddChecklistItem(current.ctx(cmd), args[0], args[1])
		if err != nil {
			return err
		}
		return printTask(cmd, *t)
	},
}

var taskAttachCmd = &cobra.Command{
	Use:   "attach <task-id> <name>",
	Short: "Record a file reference on a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		att, err := current.store.AddAttachment(current.ctx(cmd), model.Attachment{
			TaskID: args[0],
			Name:   args[1],
			URL:    attachURL,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), att.ID)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task with its checklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := current.store.GetTask(current.ctx(cmd), args[0])
		if err != nil {
			return err
		}
		return printTask(cmd, *t)
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&taskPriority, "priority", "", "low, medium or high")
	taskCreateCmd.Flags().StringVar(&taskDue, "due", "", "due date (YYYY-MM-DD)")
	taskCreateCmd.Flags().StringVar(&taskAssignee, "assignee", "", "assignee reference")
	taskCreateCmd.Flags().StringArrayVar(&taskItems, "item", nil, "checklist item (repeatable)")
	taskAttachCmd.Flags().StringVar(&attachURL, "url", "", "location of the file")

	taskCmd.AddCommand(taskCreateCmd, taskStatusCmd, taskCheckCmd, taskAddItemCmd, taskAttachCmd, taskShowCmd)
	rootCmd.AddCommand(taskCmd)
}

// resolveItem accepts a 1-based position in the checklist or an item id.
func resolveItem(t model.Task, ref string) string {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(t.Checklist) {
		return t.Checklist[n-1].ID
	}
	return ref
}

func printTask(cmd *cobra.Command, t model.Task) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "status: %s  priority: %s\n", t.Status, t.Priority)
	if t.ConcludedAt != nil {
		fmt.Fprintf(out, "concluded: %s\n", t.ConcludedAt.Format("2006-01-02 15:04"))
	}
	if t.DueDate != nil {
		fmt.Fprintf(out, "due: %s\n", t.DueDate.Format("2006-01-02"))
	}
	for i, item := range t.Checklist {
		box := " "
		if item.Completed {
			box = "x"
		}
		fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, box, item.Text)
	}
	for _, att := range t.Attachments {
		fmt.Fprintf(out, "  attachment: %s %s\n", att.Name, att.URL)
	}
	return nil
}
