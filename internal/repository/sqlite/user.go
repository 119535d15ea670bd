package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, name, avatar_url, provider, provider_user_id, balance, created_at, updated_at`

// UserDB reads and writes the users table.
type UserDB struct {
	q querier
}

// UpsertByProvider inserts a user or touches the existing row for the same
// (provider, provider_user_id).
//
// This is a single INSERT ... ON CONFLICT statement, so two concurrent first
// logins for the same identity cannot both insert: the loser of the race hits
// the UNIQUE constraint and falls into the DO UPDATE branch. The update only
// sets updated_at; email, name and avatar keep the values from the first login.
//
// RETURNING gives back the stored row either way. A freshly generated ID
// coming back means the INSERT branch ran.
func (u *UserDB) UpsertByProvider(ctx context.Context, user *model.User) (bool, error) {
	now := time.Now()
	newID := xid.New().String()

	row := u.q.QueryRowContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (provider, provider_user_id)
		 DO UPDATE SET updated_at = excluded.updated_at
		 RETURNING `+userColumns,
		newID,
		user.Email,
		user.Name,
		user.AvatarURL,
		string(user.Provider),
		user.ProviderUserID,
		toMillis(now),
		toMillis(now),
	)

	stored, err := scanUser(row)
	if err != nil {
		return false, fmt.Errorf("sqlite: upserting user (%s/%s): %w", user.Provider, user.ProviderUserID, err)
	}

	*user = *stored
	return stored.ID == newID, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// AddBalance adds delta to the user's balance as one read-modify-write
// statement, so concurrent adjustments never lose an update.
//
// SQLite silently widens an overflowing integer sum to REAL, so the WHERE
// clause refuses any delta that would leave the int64 range. A refused delta
// is a Validation error and leaves the row untouched.
func (u *UserDB) AddBalance(ctx context.Context, id string, delta int64) (int64, error) {
	var balance int64
	err := u.q.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + ?, updated_at = ?
		 WHERE id = ?
		   AND (? <= 0 OR balance <= 9223372036854775807 - ?)
		   AND (? >= 0 OR balance >= (-9223372036854775807 - 1) - ?)
		 RETURNING balance`,
		delta, toMillis(time.Now()), id,
		delta, delta,
		delta, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: adjusting balance of user %s: %w", id, err)
	}

	var exists int
	if err := u.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	if exists == 0 {
		return 0, apperror.NotFound("user", id)
	}
	return 0, apperror.ValidationFailed("amount", "balance would overflow")
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u         model.User
		provider  string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.AvatarURL,
		&provider,
		&u.ProviderUserID,
		&u.Balance,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Provider = model.Provider(provider)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}
