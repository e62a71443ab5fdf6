package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
)

var (
	projectDescription string
	projectStart       string
	projectEnd         string
	projectClient      string
	projectYes         bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, inspect and close projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project in the planning state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		p := model.NewProject(args[0], a.clock.Now())
		p.Description = projectDescription
		if projectClient != "" {
			p.ClientID = &projectClient
		}
		var err error
		if p.StartDate, err = parseDate(projectStart); err != nil {
			return err
		}
		if p.EndDate, err = parseDate(projectEnd); err != nil {
			return err
		}

		created, err := a.store.CreateProject(a.ctx(cmd), p)
		if err != nil {
			return err
		}
		a.logger.Info("project created", "project_id", created.ID)
		fmt.Fprintln(cmd.OutOrStdout(), created.ID)
		return nil
	},
}

var projectStatusCmd = &cobra.Command{
	Use:   "status <project-id> <status>",
	Short: "Change a project's status; done or cancelled completes its open tasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		ctx := a.ctx(cmd)
		status, err := model.ParseProjectStatus(args[1])
		if err != nil {
			return err
		}

		project, tasks, err := a.store.GetProjectWithTasks(ctx, args[0])
		if err != nil {
			return err
		}
		open := lifecycle.OpenTaskCount(tasks)
		if status.IsTerminal() && open > 0 && !projectYes {
			if !stdinIsTerminal() {
				return fmt.Errorf("%d open task(s) would be completed; pass --yes to confirm", open)
			}
			ok, err := confirmCascade(project.Name, status, open)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("aborted")
			}
		}

		project, tasks, err = a.coordinator.ChangeProjectStatus(ctx, args[0], status)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", project.Name, project.Status)
		return printTasks(cmd, tasks)
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show one project with its tasks, or list all projects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		ctx := a.ctx(cmd)
		if len(args) == 0 {
			projects, err := a.store.GetProjects(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Status)
			}
			return w.Flush()
		}

		project, tasks, err := a.store.GetProjectWithTasks(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", project.Name, project.Status)
		if project.Description != "" {
			fmt.Fprintln(out, project.Description)
		}
		if project.StartDate != nil || project.EndDate != nil {
			fmt.Fprintf(out, "%s → %s\n", formatDate(project.StartDate), formatDate(project.EndDate))
		}
		fmt.Fprintln(out)
		return printTasks(cmd, tasks)
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectCreateCmd.Flags().StringVar(&projectStart, "start", "", "start date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&projectEnd, "end", "", "end date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&projectClient, "client", "", "client reference")
	projectStatusCmd.Flags().BoolVarP(&projectYes, "yes", "y", false, "skip the confirmation prompt")

	projectCmd.AddCommand(projectCreateCmd, projectStatusCmd, projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

// confirmCascade asks before a project close force-completes open tasks.
func confirmCascade(name string, status model.ProjectStatus, open int) (bool, error) {
	confirmed := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Mark %q as %s?", name, status)).
		Description(fmt.Sprintf("%d open task(s) will be marked done with all checklist items completed.", open)).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return confirmed, nil
}

func printTasks(cmd *cobra.Command, tasks []model.Task) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCHECKLIST\tTITLE")
	for _, t := range tasks {
		done, total := t.ChecklistProgress()
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", t.ID, t.Status, t.Priority, done, total, t.Title)
	}
	return w.Flush()
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, &model.InvalidValueError{Field: "date", Value: raw}
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "…"
	}
	return t.Format("2006-01-02")
}

// stdinIsTerminal reports whether prompts can be shown.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
