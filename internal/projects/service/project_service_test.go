package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activityrepo "github.com/tallyhq/tally-backend/internal/activity/repository"
	activitysvc "github.com/tallyhq/tally-backend/internal/activity/service"
	"github.com/tallyhq/tally-backend/internal/changes"
	"github.com/tallyhq/tally-backend/internal/docstore"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
	"github.com/tallyhq/tally-backend/internal/projects/repository"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

const owner = "u1"

type fixture struct {
	svc      *ProjectService
	store    docstore.Store
	activity *activityrepo.ActivityRepository
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, testutil.NewStore(t))
}

func newFixtureWithStore(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	projects := repository.NewProjectRepository(store)
	projects.Now = clock.Now
	tasks := repository.NewTaskRepository(store)
	tasks.Now = clock.Now
	entries := repository.NewTimeEntryRepository(store)
	entries.Now = clock.Now
	acts := activityrepo.NewActivityRepository(store)
	acts.Now = clock.Now

	svc := NewProjectService(projects, tasks, entries,
		activitysvc.NewActivityService(acts, logging.Nop()), changes.Nop{}, logging.Nop())
	svc.Now = clock.Now

	return &fixture{svc: svc, store: store, activity: acts, clock: clock}
}

// actions counts activity entries by type/action.
func (f *fixture) actions(t *testing.T) map[string]int {
	t.Helper()
	list, err := f.activity.List(context.Background(), owner, 1000)
	require.NoError(t, err)
	out := map[string]int{}
	for _, e := range list {
		out[string(e.Type)+"/"+string(e.Action)]++
	}
	return out
}

func (f *fixture) project(t *testing.T, name string) *domain.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), owner, domain.CreateProjectRequest{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) task(t *testing.T, projectID, name string) *domain.Task {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), owner, projectID, domain.CreateTaskRequest{Name: name})
	require.NoError(t, err)
	return task
}

func TestProjectService_CreateDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProject(ctx, owner, domain.CreateProjectRequest{Name: "  Website  "})
	require.NoError(t, err)
	assert.Equal(t, "Website", p.Name)
	assert.Equal(t, domain.ProjectActive, p.Status)
	assert.Equal(t, owner, p.OwnerID)
	assert.True(t, p.CreatedAt.Equal(f.clock.T))

	_, err = f.svc.CreateProject(ctx, owner, domain.CreateProjectRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	_, err = f.svc.CreateProject(ctx, owner, domain.CreateProjectRequest{Name: "x", Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	assert.Equal(t, 1, f.actions(t)["project/created"])
}

func TestProjectService_GetIncludesTasksAndIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.project(t, "Website")
	f.task(t, p.ID, "Design")
	f.clock.Advance(time.Second)
	f.task(t, p.ID, "Build")

	got, err := f.svc.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, "Design", got.Tasks[0].Name)
	assert.Equal(t, "Build", got.Tasks[1].Name)

	_, err = f.svc.GetProject(ctx, "someone-else", p.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	// the stored project document never embeds tasks
	var raw domain.Project
	require.NoError(t, f.store.Get(ctx, docstore.Path("users", owner, "projects", p.ID), &raw))
	assert.Empty(t, raw.Tasks)
}

func TestProjectService_ListOrdersByLastActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.project(t, "A")
	f.clock.Advance(time.Minute)
	f.project(t, "B")
	f.clock.Advance(time.Minute)
	f.task(t, a.ID, "touch A")

	list, err := f.svc.ListProjects(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)
}

func TestProjectService_ChildMutationsTouchParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Website")

	check := func(t *testing.T, childUpdated time.Time) {
		t.Helper()
		got, err := f.svc.GetProject(ctx, owner, p.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(f.clock.T), "updatedAt %s want %s", got.UpdatedAt, f.clock.T)
		assert.True(t, got.LastActivity.Equal(f.clock.T))
		assert.False(t, got.UpdatedAt.Before(childUpdated))
	}

	f.clock.Advance(time.Hour)
	task := f.task(t, p.ID, "Design")
	check(t, task.UpdatedAt)

	f.clock.Advance(time.Hour)
	status := domain.TaskInProgress
	task, err := f.svc.UpdateTask(ctx, owner, p.ID, task.ID, domain.UpdateTaskRequest{Status: &status})
	require.NoError(t, err)
	check(t, task.UpdatedAt)

	f.clock.Advance(time.Hour)
	e, err := f.svc.StartTimer(ctx, owner, domain.StartTimerRequest{ProjectID: p.ID})
	require.NoError(t, err)
	check(t, e.UpdatedAt)

	f.clock.Advance(time.Hour)
	e, err = f.svc.StopTimer(ctx, owner, p.ID, e.ID)
	require.NoError(t, err)
	check(t, e.UpdatedAt)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.DeleteTimeEntry(ctx, owner, p.ID, e.ID))
	check(t, time.Time{})

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.DeleteTask(ctx, owner, p.ID, task.ID))
	check(t, time.Time{})
}

func TestProjectService_RenameKeepsTimeEntrySnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Old name")

	e, err := f.svc.StartTimer(ctx, owner, domain.StartTimerRequest{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, "Old name", e.ProjectName)

	name := "New name"
	updated, err := f.svc.UpdateProject(ctx, owner, p.ID, domain.UpdateProjectRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)

	entries, err := f.svc.ListTimeEntries(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Old name", entries[0].ProjectName)
}

func TestProjectService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Website")
	other := f.project(t, "Keep")

	for _, n := range []string{"a", "b", "c"} {
		f.task(t, p.ID, n)
	}
	f.task(t, other.ID, "survivor")
	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateTimeEntry(ctx, owner, domain.CreateTimeEntryRequest{
			ProjectID: p.ID,
			StartTime: f.clock.T.Add(-2 * time.Hour),
			EndTime:   f.clock.T.Add(-time.Hour),
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.DeleteProject(ctx, owner, p.ID))

	_, err := f.svc.GetProject(ctx, owner, p.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	docs, err := f.store.Query(ctx, docstore.Path("users", owner, "projects", p.ID, "tasks"), docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	docs, err = f.store.Query(ctx, docstore.Path("users", owner, "projects", p.ID, "timeEntries"), docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	kept, err := f.svc.GetProject(ctx, owner, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Tasks, 1)

	assert.Equal(t, 1, f.actions(t)["project/deleted"])
}

// failingDeletes fails Delete for any path containing match.
type failingDeletes struct {
	docstore.Store
	match string
}

func (s *failingDeletes) Delete(ctx context.Context, path string) error {
	if s.match != "" && strings.Contains(path, s.match) {
		return errors.New("backend unavailable")
	}
	return s.Store.Delete(ctx, path)
}

func TestProjectService_DeleteKeepsProjectOnChildFailure(t *testing.T) {
	store := &failingDeletes{Store: testutil.NewStore(t)}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	p := f.project(t, "Website")
	f.task(t, p.ID, "ok")
	bad := f.task(t, p.ID, "stuck")
	store.match = "/tasks/" + bad.ID

	err := f.svc.DeleteProject(ctx, owner, p.ID)
	require.Error(t, err)

	got, err := f.svc.GetProject(ctx, owner, p.ID)
	require.NoError(t, err, "project document survives a partial cascade")
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "stuck", got.Tasks[0].Name)
	assert.Zero(t, f.actions(t)["project/deleted"])
}
