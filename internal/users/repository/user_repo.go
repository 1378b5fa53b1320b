package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tallyhq/tally-backend/internal/users/domain"
)

const userColumns = `firebase_uid, email, display_name, photo_url, plan, stripe_customer_id,
       created_at, updated_at, last_login_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user                            domain.User
		plan                            string
		displayName, photoURL, customer sql.NullString
		lastLoginAt                     sql.NullTime
	)
	err := row.Scan(
		&user.FirebaseUID,
		&user.Email,
		&displayName,
		&photoURL,
		&plan,
		&customer,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Plan = domain.Plan(plan)
	if displayName.Valid {
		user.DisplayName = &displayName.String
	}
	if photoURL.Valid {
		user.PhotoURL = &photoURL.String
	}
	if customer.Valid {
		user.StripeCustomerID = &customer.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	return &user, nil
}

// GetByFirebaseUID retrieves a user by their Firebase UID
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE firebase_uid = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, uid))
}

// GetByStripeCustomerID finds the user a Stripe customer belongs to.
func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, customerID))
}

// Ensure creates the user on first sign-in or refreshes the profile fields
// that were supplied. Existing values survive empty inputs.
func (r *UserRepository) Ensure(ctx context.Context, req *domain.SyncUserRequest) (*domain.User, error) {
	if req.FirebaseUID == "" {
		return nil, fmt.Errorf("firebase_uid required")
	}
	q := `
INSERT INTO users (firebase_uid, email, display_name, photo_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (firebase_uid) DO UPDATE
SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
    display_name = COALESCE(EXCLUDED.display_name, users.display_name),
    photo_url = COALESCE(EXCLUDED.photo_url, users.photo_url),
    updated_at = now()
RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, q, req.FirebaseUID, req.Email, req.DisplayName, req.PhotoURL))
}

// UpdateProfile writes display name and photo URL.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const q = `
UPDATE users
SET display_name = $2, photo_url = $3, updated_at = now()
WHERE firebase_uid = $1
RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, q, user.FirebaseUID, user.DisplayName, user.PhotoURL).Scan(&user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}

// UpdateLastLogin updates the last login timestamp
func (r *UserRepository) UpdateLastLogin(ctx context.Context, uid string) error {
	const q = `UPDATE users SET last_login_at = now() WHERE firebase_uid = $1`
	return r.execOne(ctx, q, uid)
}

// SetPlan records the user's current subscription plan.
func (r *UserRepository) SetPlan(ctx context.Context, uid string, plan domain.Plan) error {
	const q = `UPDATE users SET plan = $2, updated_at = now() WHERE firebase_uid = $1`
	return r.execOne(ctx, q, uid, string(plan))
}

// SetStripeCustomerID links a Stripe customer to the user.
func (r *UserRepository) SetStripeCustomerID(ctx context.Context, uid, customerID string) error {
	const q = `UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE firebase_uid = $1`
	return r.execOne(ctx, q, uid, customerID)
}

// ListIDs returns every user's Firebase UID, for maintenance jobs.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT firebase_uid FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *UserRepository) execOne(ctx context.Context, q string, args ...any) error {
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
