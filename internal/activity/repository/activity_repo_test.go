package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

func TestActivityRepository_AppendAndList(t *testing.T) {
	clock := testutil.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	repo := NewActivityRepository(testutil.NewStore(t))
	repo.Now = clock.Now
	ctx := context.Background()

	for i, desc := range []string{"first", "second", "third"} {
		e, err := repo.Append(ctx, "u1", domain.TypeProject, domain.ActionCreated, desc)
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.True(t, e.Timestamp.Equal(clock.T), "entry %d stamped by repository clock", i)
		clock.Advance(time.Minute)
	}
	_, err := repo.Append(ctx, "u2", domain.TypeTask, domain.ActionUpdated, "other user")
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		got, err := repo.List(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "third", got[0].Description)
		assert.Equal(t, "first", got[2].Description)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := repo.List(ctx, "u1", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("scoped to owner", func(t *testing.T) {
		got, err := repo.List(ctx, "u2", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "u2", got[0].OwnerID)
	})

	t.Run("owner required", func(t *testing.T) {
		_, err := repo.Append(ctx, "", domain.TypeSystem, domain.ActionMigration, "x")
		assert.Error(t, err)
	})
}
