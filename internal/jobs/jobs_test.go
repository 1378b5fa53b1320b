package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally-backend/internal/logging"
	projectsvc "github.com/tallyhq/tally-backend/internal/projects/service"
)

type fakeUsers []string

func (f fakeUsers) ListIDs(context.Context) ([]string, error) { return f, nil }

type fakeInvoices struct {
	marked map[string]int
	fail   map[string]bool
}

func (f *fakeInvoices) MarkOverdue(_ context.Context, uid string) (int, error) {
	if f.fail[uid] {
		return 0, errors.New("store down")
	}
	return f.marked[uid], nil
}

type fakeProjects struct {
	calls []string
}

func (f *fakeProjects) MigrateLegacyTimeEntries(_ context.Context, uid string) (projectsvc.MigrationResult, error) {
	f.calls = append(f.calls, uid)
	return projectsvc.MigrationResult{Moved: 2, Skipped: 1}, nil
}

func TestSweepOverdue_ContinuesPastFailures(t *testing.T) {
	inv := &fakeInvoices{
		marked: map[string]int{"a": 2, "c": 1},
		fail:   map[string]bool{"b": true},
	}
	r := NewRunner(fakeUsers{"a", "b", "c"}, inv, &fakeProjects{}, logging.Nop())

	res, err := r.SweepOverdue(context.Background())
	assert.Error(t, err)
	assert.Equal(t, SweepResult{Users: 3, Marked: 3, Failed: 1}, res)
}

func TestMigrateTimeEntries(t *testing.T) {
	p := &fakeProjects{}
	r := NewRunner(fakeUsers{"a", "b"}, &fakeInvoices{}, p, logging.Nop())

	totals, err := r.MigrateTimeEntries(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, MigrationTotals{Users: 2, Moved: 4, Skipped: 2}, totals)
	assert.Equal(t, []string{"a", "b"}, p.calls)

	p.calls = nil
	_, err = r.MigrateTimeEntries(context.Background(), "only")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, p.calls)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(logging.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add(context.Background(), "* * * * * *", "tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(logging.Nop())
	assert.Error(t, s.Add(context.Background(), "every day", "bad", func(context.Context) error { return nil }))
}
