package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"officer-review-api/config"
	"officer-review-api/services"

	"github.com/spf13/cobra"
)

// cliApp holds the lazily opened services shared by every command.
type cliApp struct {
	cfg   config.Config
	out   io.Writer
	open  func() error
	stack *services.Stack
}

func (a *cliApp) ensure() error {
	if a.stack != nil {
		return nil
	}
	if a.open == nil {
		return fmt.Errorf("no database configured")
	}
	return a.open()
}

// newRootCmd creates the top-level "reviewctl" command and registers all
// subcommands.
func newRootCmd(app *cliApp) *cobra.Command {
	var actorID int

	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Operate the officer review workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.ensure()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// Let queued notifications finish before the process exits.
			if app.stack != nil {
				app.stack.Notifications.Wait()
			}
		},
	}
	root.PersistentFlags().IntVar(&actorID, "actor", 0, "Officer id recorded as the actor of write operations")

	root.AddCommand(
		newReconcileCmd(app, &actorID),
		newTimelineCmd(app),
		newRemindCmd(app, &actorID),
		newStatsCmd(app),
	)
	return root
}

func newReconcileCmd(app *cliApp, actorID *int) *cobra.Command {
	var periodID, officerID int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Apply pending data-driven project steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var transitions []services.Transition
			if officerID > 0 {
				out, err := app.stack.Workflow.Reconcile(ctx, periodID, officerID, *actorID)
				if err != nil {
					return err
				}
				transitions = out.Transitions
			} else {
				var err error
				if transitions, err = app.stack.Workflow.ReconcilePeriod(ctx, periodID, *actorID); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tOFFICER\tFROM\tTO")
			for _, t := range transitions {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", t.ProjectID, t.OfficerID, t.From, t.To)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "%d transition(s) applied\n", len(transitions))
			return nil
		},
	}
	cmd.Flags().IntVar(&periodID, "period", 0, "Review period id")
	cmd.Flags().IntVar(&officerID, "officer", 0, "Reconcile only this officer's project")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newTimelineCmd(app *cliApp) *cobra.Command {
	var periodID, officerID int
	var milestones bool

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print an officer's activity in a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if milestones {
				summary, err := app.stack.Recorder.Milestones(ctx, officerID, periodID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MILESTONE\tREACHED")
				for _, m := range summary.Milestones {
					reached := "-"
					if m.Event != nil {
						reached = m.Event.Timestamp.UTC().Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%s\t%s\n", m.Name, reached)
				}
				return w.Flush()
			}

			events, err := app.stack.Recorder.Timeline(ctx, officerID, periodID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tEVENT\tACTOR\tSTATUS\tDESCRIPTION")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.EventType, e.ActorID, e.EventStatus, e.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&periodID, "period", 0, "Review period id")
	cmd.Flags().IntVar(&officerID, "officer", 0, "Officer id")
	cmd.Flags().BoolVar(&milestones, "milestones", false, "Show milestone dates instead of every event")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("officer")
	return cmd
}

func newRemindCmd(app *cliApp, actorID *int) *cobra.Command {
	var periodID, withinDays int

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send due-date reminders for unsubmitted assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			days := withinDays
			if !cmd.Flags().Changed("within-days") {
				days = app.cfg.Workflow.ReminderDays
			}
			report, err := app.stack.Notifications.SendReminders(context.Background(), periodID, *actorID, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Assignments checked: %d, reminded: %d, failed: %d, skipped: %d\n",
				report.Checked, report.Sent, report.Failed, report.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&periodID, "period", 0, "Review period id")
	cmd.Flags().IntVar(&withinDays, "within-days", 3, "Remind when the deadline is at most this many days away")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newStatsCmd(app *cliApp) *cobra.Command {
	var periodID int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print activity log statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *int
			if periodID > 0 {
				filter = &periodID
			}
			stats, err := app.stack.Recorder.Statistics(context.Background(), filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(app.out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().IntVar(&periodID, "period", 0, "Limit to one review period")
	return cmd
}
