package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally-backend/internal/users/domain"
)

var userCols = []string{
	"firebase_uid", "email", "display_name", "photo_url", "plan", "stripe_customer_id",
	"created_at", "updated_at", "last_login_at",
}

var selectByUID = regexp.QuoteMeta(`SELECT ` + userColumns + ` FROM users WHERE firebase_uid = $1`)

func setupUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_GetByFirebaseUID(t *testing.T) {
	repo, mock := setupUserRepo(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(selectByUID).
			WithArgs("uid-1").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("uid-1", "a@example.com", "Alice", nil, "pro", "cus_123", now, now, nil))

		u, err := repo.GetByFirebaseUID(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", u.Email)
		assert.Equal(t, domain.PlanPro, u.Plan)
		require.NotNil(t, u.DisplayName)
		assert.Equal(t, "Alice", *u.DisplayName)
		assert.Nil(t, u.PhotoURL)
		assert.Equal(t, "cus_123", u.CustomerID())
		assert.Nil(t, u.LastLoginAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(selectByUID).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByFirebaseUID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByStripeCustomerID(t *testing.T) {
	repo, mock := setupUserRepo(t)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE stripe_customer_id = \$1`).
		WithArgs("cus_9").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("uid-9", "n@example.com", nil, nil, "free", "cus_9", now, now, now))

	u, err := repo.GetByStripeCustomerID(context.Background(), "cus_9")
	require.NoError(t, err)
	assert.Equal(t, "uid-9", u.FirebaseUID)
	assert.NotNil(t, u.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Ensure(t *testing.T) {
	repo, mock := setupUserRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users .* ON CONFLICT \(firebase_uid\) DO UPDATE`).
		WithArgs("uid-1", "a@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("uid-1", "a@example.com", nil, nil, "free", nil, now, now, nil))

	u, err := repo.Ensure(context.Background(), &domain.SyncUserRequest{FirebaseUID: "uid-1", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, u.Plan)
	assert.Equal(t, "", u.CustomerID())

	_, err = repo.Ensure(context.Background(), &domain.SyncUserRequest{})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetPlan(t *testing.T) {
	repo, mock := setupUserRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET plan = \$2`).
		WithArgs("uid-1", "business").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetPlan(ctx, "uid-1", domain.PlanBusiness))

	mock.ExpectExec(`UPDATE users SET plan = \$2`).
		WithArgs("ghost", "free").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetPlan(ctx, "ghost", domain.PlanFree), domain.ErrUserNotFound)

	mock.ExpectExec(`UPDATE users SET plan = \$2`).
		WithArgs("uid-1", "pro").
		WillReturnError(errors.New("db down"))
	assert.Error(t, repo.SetPlan(ctx, "uid-1", domain.PlanPro))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetStripeCustomerID(t *testing.T) {
	repo, mock := setupUserRepo(t)

	mock.ExpectExec(`UPDATE users SET stripe_customer_id = \$2`).
		WithArgs("uid-1", "cus_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStripeCustomerID(context.Background(), "uid-1", "cus_1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListIDs(t *testing.T) {
	repo, mock := setupUserRepo(t)

	mock.ExpectQuery(`SELECT firebase_uid FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"firebase_uid"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
