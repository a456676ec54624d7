package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cinerate/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewRowColumns = []string{"id", "movie_id", "user_id", "rating", "comment", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestReviewRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(time.Hour)

	t.Run("single conditional write", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectQuery(`INSERT INTO reviews .* ON CONFLICT \(movie_id, user_id\) DO UPDATE`).
			WithArgs(1, 2, 4, "great", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(reviewRowColumns).AddRow(10, 1, 2, 4, "great", created, updated))

		review, err := repo.Upsert(ctx, 1, 2, 4, "great")
		require.NoError(t, err)
		assert.Equal(t, 10, review.ID)
		assert.Equal(t, 4, review.Rating)
		assert.Equal(t, created, review.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation retried as update", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectQuery(`INSERT INTO reviews`).
			WithArgs(1, 2, 5, "changed my mind", sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: "uq_reviews_movie_user"})
		mock.ExpectQuery(`UPDATE reviews\s+SET rating = \$3`).
			WithArgs(1, 2, 5, "changed my mind", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(reviewRowColumns).AddRow(10, 1, 2, 5, "changed my mind", created, updated))

		review, err := repo.Upsert(ctx, 1, 2, 5, "changed my mind")
		require.NoError(t, err)
		assert.Equal(t, 10, review.ID)
		assert.Equal(t, 5, review.Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing movie maps to not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectQuery(`INSERT INTO reviews`).
			WillReturnError(&pq.Error{Code: codeForeignKeyViolation})

		_, err := repo.Upsert(ctx, 99, 2, 3, "")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid rating never reaches the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		_, err := repo.Upsert(ctx, 1, 2, 6, "too good")
		var verr *types.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "rating", verr.Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors are returned", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		boom := errors.New("connection reset")
		mock.ExpectQuery(`INSERT INTO reviews`).WillReturnError(boom)

		_, err := repo.Upsert(ctx, 1, 2, 3, "")
		assert.ErrorIs(t, err, boom)
	})
}

func TestReviewRepository_Aggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("no reviews", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectQuery(`SELECT COUNT\(1\), COALESCE\(SUM\(rating\), 0\)`).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(0, 0))

		agg, err := repo.Aggregate(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, agg.ReviewCount)
		assert.Nil(t, agg.AvgRating)
	})

	t.Run("mean", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectQuery(`SELECT COUNT\(1\), COALESCE\(SUM\(rating\), 0\)`).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(4, 14))

		agg, err := repo.Aggregate(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, agg.AvgRating)
		assert.InDelta(t, 3.5, *agg.AvgRating, 0.0001)
		assert.Equal(t, 4, agg.ReviewCount)
	})
}

func TestReviewRepository_Aggregates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectQuery(`WHERE movie_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "count", "sum"}).AddRow(1, 2, 9))

	aggs, err := repo.Aggregates(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	require.NotNil(t, aggs[1].AvgRating)
	assert.InDelta(t, 4.5, *aggs[1].AvgRating, 0.0001)
	assert.Equal(t, 0, aggs[2].ReviewCount)
	assert.Nil(t, aggs[2].AvgRating)

	empty, err := repo.Aggregates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByMovie(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)
	newer := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-48 * time.Hour)

	mock.ExpectQuery(`JOIN users u ON u.id = r.user_id\s+WHERE r.movie_id = \$1\s+ORDER BY r.created_at DESC, r.id DESC`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rating", "comment", "created_at", "username"}).
			AddRow(8, 5, "loved it", newer, "bea").
			AddRow(2, 2, "", older, "al"))

	entries, err := repo.ListByMovie(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bea", entries[0].Username)
	assert.Equal(t, 2, entries[1].ID)

	mock.ExpectQuery(`JOIN users u`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rating", "comment", "created_at", "username"}))

	none, err := repo.ListByMovie(context.Background(), 4)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReviewRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectExec(`DELETE FROM reviews WHERE id = \$1`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reviews WHERE id = \$1`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectQuery(`FROM reviews WHERE id = \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(reviewRowColumns))

	_, err := repo.Get(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`FROM reviews WHERE movie_id = \$1 AND user_id = \$2`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).AddRow(3, 1, 2, 4, "ok", time.Now(), time.Now()))

	review, err := repo.GetByMovieAndUser(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, review.ID)
}

func TestUserRepository_IncrementOffenseForReview(t *testing.T) {
	ctx := context.Background()

	t.Run("atomic increment of the author", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`SET offense_count = offense_count \+ 1.*WHERE id = \(SELECT user_id FROM reviews WHERE id = \$1\)`).
			WithArgs(12, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "offense_count"}).AddRow(4, 3))

		result, err := repo.IncrementOffenseForReview(ctx, 12)
		require.NoError(t, err)
		assert.Equal(t, 4, result.UserID)
		assert.Equal(t, 3, result.OffenseCount)
		assert.Equal(t, types.StandingBlocked, result.Standing)
	})

	t.Run("missing review", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`UPDATE users`).
			WithArgs(13, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "offense_count"}))

		_, err := repo.IncrementOffenseForReview(ctx, 13)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserRepository_SetOffenseCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SET offense_count = \$2`).
		WithArgs(4, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "offense_count"}).AddRow(4, 0))

	result, err := repo.SetOffenseCount(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Equal(t, types.StandingClean, result.Standing)

	mock.ExpectQuery(`SET offense_count = \$2`).
		WithArgs(5, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "offense_count"}))

	_, err = repo.SetOffenseCount(context.Background(), 5, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_ListOffenders(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`WHERE offense_count >= 1\s+ORDER BY offense_count DESC, username ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "offense_count"}).
			AddRow(2, "troll", "t@example.com", 5).
			AddRow(3, "edgy", "e@example.com", 1))

	offenders, err := repo.ListOffenders(context.Background())
	require.NoError(t, err)
	require.Len(t, offenders, 2)
	assert.Equal(t, types.StandingBlocked, offenders[0].Standing)
	assert.Equal(t, types.StandingWarned, offenders[1].Standing)
}

func TestUserRepository_CreateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: codeUniqueViolation})

	_, err := repo.Create(context.Background(), types.User{Username: "dup", Email: "d@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMovieRepository_List(t *testing.T) {
	movieCols := []string{"id", "title", "genre", "release_year", "description", "image_path", "created_at"}
	now := time.Now()

	t.Run("all movies", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepository(db)

		mock.ExpectQuery(`FROM movies ORDER BY created_at DESC, id DESC`).
			WillReturnRows(sqlmock.NewRows(movieCols).
				AddRow(2, "Heat", "Crime", 1995, "", nil, now).
				AddRow(1, "Up", "Animation", 2009, "", "/uploads/up.png", now))

		movies, err := repo.List(context.Background(), "  ")
		require.NoError(t, err)
		require.Len(t, movies, 2)
		assert.Nil(t, movies[0].ImagePath)
		assert.Equal(t, "/uploads/up.png", movies[1].StoredImagePath())
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepository(db)

		mock.ExpectQuery(`WHERE title ILIKE \$1 OR genre ILIKE \$1`).
			WithArgs(`%100\%\_x%`).
			WillReturnRows(sqlmock.NewRows(movieCols))

		movies, err := repo.List(context.Background(), "100%_x")
		require.NoError(t, err)
		assert.Empty(t, movies)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMovieRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepository(db)

	mock.ExpectQuery(`FROM movies WHERE id = \$1`).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), 77)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.Exists(context.Background(), 77)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMovieRepository_SetImagePath(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepository(db)

	mock.ExpectExec(`UPDATE movies SET image_path = \$1 WHERE id = \$2`).
		WithArgs("/img/heat.jpg", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE movies SET image_path`).
		WithArgs("/img/x.jpg", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetImagePath(context.Background(), 2, "/img/heat.jpg"))
	assert.ErrorIs(t, repo.SetImagePath(context.Background(), 3, "/img/x.jpg"), ErrNotFound)
}
