// Package jobs holds the batch work run by the worker binary.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tallyhq/tally-backend/internal/logging"
	projectsvc "github.com/tallyhq/tally-backend/internal/projects/service"
)

type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type OverdueMarker interface {
	MarkOverdue(ctx context.Context, ownerID string) (int, error)
}

type TimeEntryMigrator interface {
	MigrateLegacyTimeEntries(ctx context.Context, ownerID string) (projectsvc.MigrationResult, error)
}

type Runner struct {
	users    UserLister
	invoices OverdueMarker
	projects TimeEntryMigrator
	log      logging.Logger
}

func NewRunner(users UserLister, invoices OverdueMarker, projects TimeEntryMigrator, log logging.Logger) *Runner {
	return &Runner{users: users, invoices: invoices, projects: projects, log: log.With("component", "jobs")}
}

// SweepResult summarizes one overdue sweep.
type SweepResult struct {
	Users  int
	Marked int
	Failed int
}

// SweepOverdue marks past-due sent invoices overdue for every user. A failing
// user is logged and counted; the sweep continues with the next one.
func (r *Runner) SweepOverdue(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	ids, err := r.users.ListIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	var errs []error
	for _, uid := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Users++
		n, err := r.invoices.MarkOverdue(ctx, uid)
		res.Marked += n
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
			r.log.Error(ctx, "overdue sweep failed for user", "user", uid, "error", err)
		}
	}
	r.log.Info(ctx, "overdue sweep done", "users", res.Users, "marked", res.Marked, "failed", res.Failed)
	return res, errors.Join(errs...)
}

// MigrationTotals sums the per-user migration results.
type MigrationTotals struct {
	Users   int
	Moved   int
	Skipped int
}

// MigrateTimeEntries moves legacy time entries under their projects, for one
// user when uid is set, otherwise for all users.
func (r *Runner) MigrateTimeEntries(ctx context.Context, uid string) (MigrationTotals, error) {
	var totals MigrationTotals
	ids := []string{uid}
	if uid == "" {
		var err error
		ids, err = r.users.ListIDs(ctx)
		if err != nil {
			return totals, fmt.Errorf("list users: %w", err)
		}
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return totals, err
		}
		res, err := r.projects.MigrateLegacyTimeEntries(ctx, id)
		totals.Users++
		totals.Moved += res.Moved
		totals.Skipped += res.Skipped
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			r.log.Error(ctx, "time entry migration failed for user", "user", id, "error", err)
			continue
		}
		if res.Moved > 0 || res.Skipped > 0 {
			r.log.Info(ctx, "time entries migrated", "user", id, "moved", res.Moved, "skipped", res.Skipped)
		}
	}
	return totals, errors.Join(errs...)
}
