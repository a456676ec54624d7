package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cinerate/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, email, is_admin, offense_count, password_hash, created_at, updated_at`

// UserRepository handles persistence for users and their offense counters.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Create inserts a new user with a zero offense count.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.OffenseCount = 0

	const query = `
		INSERT INTO users (username, email, is_admin, offense_count, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.IsAdmin,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// IncrementOffenseForReview adds one offense to the author of a review in a
// single statement. Concurrent calls never lose an increment.
func (r *UserRepository) IncrementOffenseForReview(ctx context.Context, reviewID int) (types.OffenseResult, error) {
	const query = `
		UPDATE users
		SET offense_count = offense_count + 1,
			updated_at = $2
		WHERE id = (SELECT user_id FROM reviews WHERE id = $1)
		RETURNING id, offense_count`
	var result types.OffenseResult
	if err := r.db.QueryRowContext(ctx, query, reviewID, time.Now().UTC()).Scan(&result.UserID, &result.OffenseCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OffenseResult{}, ErrNotFound
		}
		return types.OffenseResult{}, err
	}
	result.Standing = types.StandingFor(result.OffenseCount)
	return result, nil
}

// SetOffenseCount overwrites a user's offense count.
func (r *UserRepository) SetOffenseCount(ctx context.Context, userID, count int) (types.OffenseResult, error) {
	const query = `
		UPDATE users
		SET offense_count = $2,
			updated_at = $3
		WHERE id = $1
		RETURNING id, offense_count`
	var result types.OffenseResult
	if err := r.db.QueryRowContext(ctx, query, userID, count, time.Now().UTC()).Scan(&result.UserID, &result.OffenseCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OffenseResult{}, ErrNotFound
		}
		return types.OffenseResult{}, err
	}
	result.Standing = types.StandingFor(result.OffenseCount)
	return result, nil
}

// ListOffenders returns users with at least one offense, worst first.
func (r *UserRepository) ListOffenders(ctx context.Context) ([]types.Offender, error) {
	const query = `
		SELECT id, username, email, offense_count
		FROM users
		WHERE offense_count >= 1
		ORDER BY offense_count DESC, username ASC`
	offenders := []types.Offender{}
	if err := r.db.SelectContext(ctx, &offenders, query); err != nil {
		return nil, err
	}
	for i := range offenders {
		offenders[i].Standing = types.StandingFor(offenders[i].OffenseCount)
	}
	return offenders, nil
}
