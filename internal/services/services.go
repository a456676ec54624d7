package services

import (
	"context"
	"errors"

	"github.com/cinerate/apiserver/types"
)

// ErrForbidden is returned when the caller's identity does not allow the
// operation: a non-admin attempting moderation, or a blocked user
// submitting a review.
var ErrForbidden = errors.New("forbidden")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	IncrementOffenseForReview(ctx context.Context, reviewID int) (types.OffenseResult, error)
	SetOffenseCount(ctx context.Context, userID, count int) (types.OffenseResult, error)
	ListOffenders(ctx context.Context) ([]types.Offender, error)
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Upsert(ctx context.Context, movieID, userID, rating int, comment string) (types.Review, error)
	Aggregate(ctx context.Context, movieID int) (types.Aggregate, error)
	Aggregates(ctx context.Context, movieIDs []int) (map[int]types.Aggregate, error)
	ListByMovie(ctx context.Context, movieID int) ([]types.ReviewEntry, error)
	Get(ctx context.Context, id int) (types.Review, error)
	GetByMovieAndUser(ctx context.Context, movieID, userID int) (types.Review, error)
	Delete(ctx context.Context, id int) (bool, error)
}

// MovieRepository defines the catalog reads and the poster write the
// review core needs.
type MovieRepository interface {
	List(ctx context.Context, search string) ([]types.Movie, error)
	Get(ctx context.Context, id int) (types.Movie, error)
	Exists(ctx context.Context, id int) (bool, error)
	SetImagePath(ctx context.Context, id int, imagePath string) error
}

func requireAdmin(actor types.Identity) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	return nil
}
