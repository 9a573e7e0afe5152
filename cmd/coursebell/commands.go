package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"coursebell/internal/app"
	"coursebell/internal/reminder"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "coursebell",
		Short: "Course deadline reminders",
		Long: `coursebell collects outstanding lectures and assignments from a course
feed, ranks them by time left and schedules one reminder per task at the
selected lead time (3h, 6h, 12h, 1d or 3d before the deadline).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newTasksCmd(&cfgPath),
		newPlanCmd(&cfgPath),
	)
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reminder service until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Stop(context.Background(), app.StopFatalError)
				return fmt.Errorf("start: %w", err)
			}

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				reason = app.StopFatalError
			}
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := a.Stop(stopCtx, reason); err != nil {
				return err
			}
			return a.Err()
		},
	}
}

func newTasksCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Fetch the feed and print the ranked task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(*cfgPath, app.Offline())
			if err != nil {
				return err
			}
			defer a.Stop(context.Background(), app.StopAppStop)

			tasks, err := a.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), app.RenderTasks(tasks, limit))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most n tasks (0 = all)")
	return cmd
}

func newPlanCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what the next pass would schedule, without scheduling anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(*cfgPath, app.Offline())
			if err != nil {
				return err
			}
			defer a.Stop(context.Background(), app.StopAppStop)

			plan, lead, err := a.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), plan, lead)
		},
	}
}

func writePlan(w io.Writer, plan []reminder.Planned, lead reminder.LeadTime) error {
	fmt.Fprintf(w, "lead: %s\n", lead)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERDICT\tFIRE AT\tDEADLINE\tTASK")
	for _, p := range plan {
		verdict := p.Decision.Verdict.String()
		if p.AlreadyScheduled {
			verdict = "scheduled"
		}
		fireAt := "-"
		if p.Decision.Verdict == reminder.Due {
			fireAt = p.Decision.FireAt.Format("01-02 15:04")
		}
		dl := p.Task.RawDeadline
		if p.Task.Deadline.Valid() {
			dl = p.Task.Deadline.Time().Format("01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n", verdict, fireAt, dl, reminder.Title(p.Task), p.Task.Label)
	}
	return tw.Flush()
}
