package types

import "time"

// Movie is a catalog entry. Records are maintained by the catalog CRUD
// layer; the review core only reads them.
type Movie struct {
	ID          int    `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Genre       string `json:"genre" db:"genre"`
	ReleaseYear int    `json:"release_year" db:"release_year"`
	Description string `json:"description" db:"description"`

	// ImagePath is an explicitly stored poster path. When nil or empty the
	// poster is resolved from the configured poster sources by title.
	ImagePath *string `json:"image_path" db:"image_path"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StoredImagePath returns the explicit poster path, or "" when none is stored.
func (m Movie) StoredImagePath() string {
	if m.ImagePath == nil {
		return ""
	}
	return *m.ImagePath
}

// MovieSummary is a movie enriched with its rating aggregate and poster.
type MovieSummary struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Genre       string   `json:"genre"`
	ReleaseYear int      `json:"release_year"`
	Description string   `json:"description"`
	AvgRating   *float64 `json:"avg_rating"`
	ReviewCount int      `json:"review_count"`
	RatingLabel string   `json:"rating_label"`
	PosterURL   *string  `json:"poster_url"`
}

// NewMovieSummary merges a movie with its aggregate and resolved poster URL.
// An empty posterURL is reported as null.
func NewMovieSummary(m Movie, agg Aggregate, posterURL string) MovieSummary {
	summary := MovieSummary{
		ID:          m.ID,
		Title:       m.Title,
		Genre:       m.Genre,
		ReleaseYear: m.ReleaseYear,
		Description: m.Description,
		AvgRating:   agg.AvgRating,
		ReviewCount: agg.ReviewCount,
		RatingLabel: agg.Label(),
	}
	if posterURL != "" {
		summary.PosterURL = &posterURL
	}
	return summary
}

// MovieDetail is the single-movie view: the summary plus its reviews,
// newest first.
type MovieDetail struct {
	MovieSummary
	Reviews []ReviewEntry `json:"reviews"`
}

// PosterMatch records a poster path persisted for a movie.
type PosterMatch struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	ImagePath string `json:"image_path"`
}

// PosterAssignment summarises a batch poster assignment run.
type PosterAssignment struct {
	Updated int           `json:"updated"`
	Matched []PosterMatch `json:"matched"`
}
