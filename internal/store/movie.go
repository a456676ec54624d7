package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cinerate/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const movieColumns = `id, title, genre, release_year, description, image_path, created_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// MovieRepository reads catalog entries for the review core.
type MovieRepository struct {
	db *sqlx.DB
}

func NewMovieRepository(db *sqlx.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List returns movies whose title or genre contains search, ignoring case,
// newest first. An empty search returns every movie.
func (r *MovieRepository) List(ctx context.Context, search string) ([]types.Movie, error) {
	movies := []types.Movie{}
	search = strings.TrimSpace(search)
	if search == "" {
		query := `SELECT ` + movieColumns + ` FROM movies ORDER BY created_at DESC, id DESC`
		if err := r.db.SelectContext(ctx, &movies, query); err != nil {
			return nil, err
		}
		return movies, nil
	}

	query := `SELECT ` + movieColumns + `
		FROM movies
		WHERE title ILIKE $1 OR genre ILIKE $1
		ORDER BY created_at DESC, id DESC`
	pattern := "%" + likeEscaper.Replace(search) + "%"
	if err := r.db.SelectContext(ctx, &movies, query, pattern); err != nil {
		return nil, err
	}
	return movies, nil
}

func (r *MovieRepository) Get(ctx context.Context, id int) (types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`
	var movie types.Movie
	if err := r.db.GetContext(ctx, &movie, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (r *MovieRepository) Exists(ctx context.Context, id int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SetImagePath stores an explicit poster path for a movie.
func (r *MovieRepository) SetImagePath(ctx context.Context, id int, imagePath string) error {
	const query = `UPDATE movies SET image_path = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, imagePath, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
