package types

import (
	"fmt"
	"math"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating and comment for a movie. At most one review
// exists per (MovieID, UserID); resubmitting overwrites Rating and Comment
// in place.
type Review struct {
	ID        int       `json:"id" db:"id"`
	MovieID   int       `json:"movie_id" db:"movie_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReviewEntry is a review as shown on a movie page, joined with the
// author's username.
type ReviewEntry struct {
	ID        int       `json:"id" db:"id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Username  string    `json:"username" db:"username"`
}

// Aggregate is the derived rating summary of a movie. AvgRating is nil
// when ReviewCount is zero.
type Aggregate struct {
	AvgRating   *float64 `json:"avg_rating"`
	ReviewCount int      `json:"review_count"`
}

// NewAggregate builds an aggregate from a review count and the sum of
// their ratings.
func NewAggregate(count int, sum int64) Aggregate {
	if count <= 0 {
		return Aggregate{}
	}
	avg := float64(sum) / float64(count)
	return Aggregate{AvgRating: &avg, ReviewCount: count}
}

// Label renders the average rounded to one decimal place, or "N/A" when
// there are no reviews.
func (a Aggregate) Label() string {
	if a.AvgRating == nil || math.IsNaN(*a.AvgRating) {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *a.AvgRating)
}

// ValidateRating rejects ratings outside [MinRating, MaxRating].
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{
			Field:   "rating",
			Message: fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating),
		}
	}
	return nil
}
