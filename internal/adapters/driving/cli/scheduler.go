package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var schedulerHistoryLimit int

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect and run background tasks",
	Long: `The scheduler runs alongside 'recall mcp serve'. It saves the index
snapshot when it changed and, if enabled, retries documents whose indexing
failed. Intervals are set under [scheduler] in the config file.`,
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task state",
	Args:  cobra.NoArgs,
	RunE:  runSchedulerStatus,
}

var schedulerHistoryCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show recent runs of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerHistory,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Run a task now",
	Long: `Runs a task immediately, even when it is disabled, and records the run
in the task history.`,
	Example: `  recall scheduler run snapshot-save
  recall scheduler run retry-failed`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedulerRun,
}

func init() {
	schedulerHistoryCmd.Flags().IntVarP(&schedulerHistoryLimit, "limit", "n", 10, "maximum number of runs")

	schedulerCmd.AddCommand(schedulerStatusCmd)
	schedulerCmd.AddCommand(schedulerHistoryCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	rootCmd.AddCommand(schedulerCmd)
}

func runSchedulerStatus(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	tasks, err := scheduler.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks registered.")
		return nil
	}

	cmd.Println(headingStyle.Render("Tasks:"))
	for i := range tasks {
		t := &tasks[i]
		state := "enabled"
		if !t.Enabled {
			state = mutedStyle.Render("disabled")
		}
		cmd.Printf("  %s (%s, every %s)\n", t.ID, state, t.Interval)
		cmd.Printf("      Last run:  %s\n", formatTime(t.LastRun))
		if t.Enabled {
			cmd.Printf("      Next run:  %s\n", formatTime(t.NextRun))
		}
		if t.LastError != "" {
			cmd.Printf("      %s %s (%d in a row)\n", warnStyle.Render("Last error:"), t.LastError, t.Failures)
		}
	}
	return nil
}

func runSchedulerHistory(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	runs, err := scheduler.History(cmd.Context(), args[0], schedulerHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Printf("No runs recorded for %s.\n", args[0])
		return nil
	}

	for i := range runs {
		cmd.Println(describeRun(&runs[i]))
	}
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	res, err := scheduler.RunNow(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	if !res.Success {
		return fmt.Errorf("task %s failed: %s", res.TaskID, res.Error)
	}

	detail := res.Detail
	if detail == "" {
		detail = "done"
	}
	cmd.Printf("%s: %s (%s)\n", res.TaskID, detail, res.Duration().Round(time.Millisecond))
	return nil
}

func describeRun(r *domain.TaskResult) string {
	status := scoreStyle.Render("ok")
	summary := r.Detail
	if !r.Success {
		status = warnStyle.Render("failed")
		summary = r.Error
	}
	return fmt.Sprintf("  %s  %-6s  %s  %s", formatTime(r.StartedAt), status,
		r.Duration().Round(time.Millisecond), summary)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(timeFormat)
}
