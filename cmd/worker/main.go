package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally-backend/config"
	"github.com/tallyhq/tally-backend/internal/bootstrap"
	"github.com/tallyhq/tally-backend/internal/jobs"
	"github.com/tallyhq/tally-backend/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "worker",
		Short:         "Tally batch jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(overdueCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withRunner opens the runtime for one command and closes it afterwards.
func withRunner(fn func(ctx context.Context, r *jobs.Runner, log logging.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.App.Environment, cfg.App.LogLevel).With("process", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := rt.Services
	return fn(ctx, jobs.NewRunner(svc.Users, svc.Invoices, svc.Projects, log), log)
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Mark sent invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *jobs.Runner, _ logging.Logger) error {
				res, err := r.SweepOverdue(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d marked=%d failed=%d\n", res.Users, res.Marked, res.Failed)
				return err
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "migrate-time-entries",
		Short: "Move legacy users/{uid}/timeEntries documents under their projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *jobs.Runner, _ logging.Logger) error {
				totals, err := r.MigrateTimeEntries(ctx, uid)
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d moved=%d skipped=%d\n", totals.Users, totals.Moved, totals.Skipped)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "migrate a single user (default: all users)")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the overdue sweep on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *jobs.Runner, log logging.Logger) error {
				s := jobs.NewScheduler(log)
				err := s.Add(ctx, spec, "overdue-sweep", func(ctx context.Context) error {
					_, err := r.SweepOverdue(ctx)
					return err
				})
				if err != nil {
					return err
				}
				s.Start()
				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				s.Stop(stopCtx)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&spec, "spec", jobs.NightlySpec, "six-field cron spec (seconds first), UTC")
	return cmd
}
