package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cinerate/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const reviewColumns = `id, movie_id, user_id, rating, comment, created_at, updated_at`

// ReviewRepository handles persistence for reviews and owns the one review
// per (movie, user) invariant.
type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert writes the user's review for a movie in a single conditional
// statement keyed on (movie_id, user_id). An existing review keeps its id
// and created_at; rating and comment take the latest values.
func (r *ReviewRepository) Upsert(ctx context.Context, movieID, userID, rating int, comment string) (types.Review, error) {
	if err := types.ValidateRating(rating); err != nil {
		return types.Review{}, err
	}

	now := time.Now().UTC()

	const query = `
		INSERT INTO reviews (movie_id, user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (movie_id, user_id) DO UPDATE
		SET rating = EXCLUDED.rating,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + reviewColumns
	var review types.Review
	err := r.db.QueryRowxContext(ctx, query, movieID, userID, rating, comment, now).StructScan(&review)
	switch {
	case err == nil:
		return review, nil
	case isUniqueViolation(err):
		// Lost a race on the unique pair; the row now exists.
		return r.updateExisting(ctx, movieID, userID, rating, comment, now)
	case isForeignKeyViolation(err):
		return types.Review{}, fmt.Errorf("movie %d or user %d: %w", movieID, userID, ErrNotFound)
	default:
		return types.Review{}, err
	}
}

func (r *ReviewRepository) updateExisting(ctx context.Context, movieID, userID, rating int, comment string, now time.Time) (types.Review, error) {
	const query = `
		UPDATE reviews
		SET rating = $3,
			comment = $4,
			updated_at = $5
		WHERE movie_id = $1 AND user_id = $2
		RETURNING ` + reviewColumns
	var review types.Review
	if err := r.db.QueryRowxContext(ctx, query, movieID, userID, rating, comment, now).StructScan(&review); err != nil {
		return types.Review{}, fmt.Errorf("retry review upsert as update: %w", err)
	}
	return review, nil
}

// Aggregate computes the rating summary of one movie from current rows.
func (r *ReviewRepository) Aggregate(ctx context.Context, movieID int) (types.Aggregate, error) {
	const query = `
		SELECT COUNT(1), COALESCE(SUM(rating), 0)
		FROM reviews
		WHERE movie_id = $1`
	var (
		count int
		sum   int64
	)
	if err := r.db.QueryRowContext(ctx, query, movieID).Scan(&count, &sum); err != nil {
		return types.Aggregate{}, err
	}
	return types.NewAggregate(count, sum), nil
}

// Aggregates computes rating summaries for several movies in one query.
// Movies without reviews are present with the zero aggregate.
func (r *ReviewRepository) Aggregates(ctx context.Context, movieIDs []int) (map[int]types.Aggregate, error) {
	result := make(map[int]types.Aggregate, len(movieIDs))
	if len(movieIDs) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(movieIDs))
	for _, id := range movieIDs {
		result[id] = types.Aggregate{}
		ids = append(ids, int64(id))
	}

	const query = `
		SELECT movie_id, COUNT(1), COALESCE(SUM(rating), 0)
		FROM reviews
		WHERE movie_id = ANY($1)
		GROUP BY movie_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			movieID int
			count   int
			sum     int64
		)
		if err := rows.Scan(&movieID, &count, &sum); err != nil {
			return nil, err
		}
		result[movieID] = types.NewAggregate(count, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ListByMovie returns a movie's reviews with author usernames, newest first.
func (r *ReviewRepository) ListByMovie(ctx context.Context, movieID int) ([]types.ReviewEntry, error) {
	const query = `
		SELECT r.id, r.rating, r.comment, r.created_at, u.username
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.movie_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	entries := []types.ReviewEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, movieID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ReviewRepository) Get(ctx context.Context, id int) (types.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	var review types.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// GetByMovieAndUser returns the single review a user wrote for a movie.
func (r *ReviewRepository) GetByMovieAndUser(ctx context.Context, movieID, userID int) (types.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE movie_id = $1 AND user_id = $2`
	var review types.Review
	if err := r.db.GetContext(ctx, &review, query, movieID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// Delete removes a review. Deleting a review that does not exist succeeds;
// the returned flag reports whether a row was removed.
func (r *ReviewRepository) Delete(ctx context.Context, id int) (bool, error) {
	const query = `DELETE FROM reviews WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
