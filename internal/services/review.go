package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cinerate/apiserver/internal/metrics"
	"github.com/cinerate/apiserver/internal/mq"
	"github.com/cinerate/apiserver/internal/posters"
	"github.com/cinerate/apiserver/internal/store"
	"github.com/cinerate/apiserver/types"
)

// ReviewService runs review submission and the movie read paths that
// combine catalog data with aggregates and posters.
type ReviewService struct {
	movies     MovieRepository
	reviews    ReviewRepository
	moderation *ModerationService
	posters    *posters.Resolver
	events     *mq.Publisher
	logger     *slog.Logger
}

func NewReviewService(
	movies MovieRepository,
	reviews ReviewRepository,
	moderation *ModerationService,
	resolver *posters.Resolver,
	events *mq.Publisher,
	logger *slog.Logger,
) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = posters.NewResolver(logger)
	}
	return &ReviewService{
		movies:     movies,
		reviews:    reviews,
		moderation: moderation,
		posters:    resolver,
		events:     events,
		logger:     logger,
	}
}

// SubmitReview creates or overwrites the caller's review of a movie. The
// moderation gate is checked before anything else, so a blocked caller is
// refused even with an invalid rating.
func (s *ReviewService) SubmitReview(ctx context.Context, identity types.Identity, movieID, rating int, comment string) (types.Review, error) {
	if !s.moderation.CanSubmitReview(identity) {
		metrics.ReviewsRejected.WithLabelValues("blocked").Inc()
		s.logger.InfoContext(ctx, "review refused for blocked user",
			slog.Int("user_id", identity.UserID),
			slog.Int("movie_id", movieID))
		return types.Review{}, ErrForbidden
	}
	if err := types.ValidateRating(rating); err != nil {
		metrics.ReviewsRejected.WithLabelValues("invalid").Inc()
		return types.Review{}, err
	}

	exists, err := s.movies.Exists(ctx, movieID)
	if err != nil {
		return types.Review{}, fmt.Errorf("check movie %d: %w", movieID, err)
	}
	if !exists {
		return types.Review{}, fmt.Errorf("movie %d: %w", movieID, store.ErrNotFound)
	}

	review, err := s.reviews.Upsert(ctx, movieID, identity.UserID, rating, comment)
	if err != nil {
		return types.Review{}, fmt.Errorf("save review: %w", err)
	}

	metrics.ReviewsSubmitted.Inc()
	s.events.Publish(ctx, mq.Event{
		Type:     mq.EventReviewSubmitted,
		ActorID:  identity.UserID,
		UserID:   identity.UserID,
		MovieID:  movieID,
		ReviewID: review.ID,
		Rating:   review.Rating,
	})
	return review, nil
}

// GetOwnReview returns the caller's review of a movie.
func (s *ReviewService) GetOwnReview(ctx context.Context, identity types.Identity, movieID int) (types.Review, error) {
	return s.reviews.GetByMovieAndUser(ctx, movieID, identity.UserID)
}

// GetMovieView returns a movie with its aggregate, poster and reviews
// (newest first).
func (s *ReviewService) GetMovieView(ctx context.Context, movieID int) (types.MovieDetail, error) {
	movie, err := s.movies.Get(ctx, movieID)
	if err != nil {
		return types.MovieDetail{}, err
	}

	agg, err := s.reviews.Aggregate(ctx, movieID)
	if err != nil {
		return types.MovieDetail{}, fmt.Errorf("aggregate movie %d: %w", movieID, err)
	}

	entries, err := s.reviews.ListByMovie(ctx, movieID)
	if err != nil {
		return types.MovieDetail{}, fmt.Errorf("list reviews for movie %d: %w", movieID, err)
	}

	var idx posters.Index
	if movie.StoredImagePath() == "" {
		idx = s.posters.Index(ctx)
	}
	return types.MovieDetail{
		MovieSummary: types.NewMovieSummary(movie, agg, s.posterURL(ctx, movie, idx)),
		Reviews:      entries,
	}, nil
}

// ListMoviesView lists movies whose title or genre contains search (all
// movies when search is empty), newest first, each with its aggregate and
// poster. Poster sources are scanned at most once per call.
func (s *ReviewService) ListMoviesView(ctx context.Context, search string) ([]types.MovieSummary, error) {
	movies, err := s.movies.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	ids := make([]int, len(movies))
	needIndex := false
	for i, m := range movies {
		ids[i] = m.ID
		if m.StoredImagePath() == "" {
			needIndex = true
		}
	}

	aggs, err := s.reviews.Aggregates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("aggregate movies: %w", err)
	}

	var idx posters.Index
	if needIndex {
		idx = s.posters.Index(ctx)
	}

	summaries := make([]types.MovieSummary, 0, len(movies))
	for _, m := range movies {
		summaries = append(summaries, types.NewMovieSummary(m, aggs[m.ID], s.posterURL(ctx, m, idx)))
	}
	return summaries, nil
}

// AssignPosters stores the index match for every movie whose current
// image path differs from it. Movies without a match are left alone.
func (s *ReviewService) AssignPosters(ctx context.Context, actor types.Identity) (types.PosterAssignment, error) {
	if err := requireAdmin(actor); err != nil {
		return types.PosterAssignment{}, err
	}

	movies, err := s.movies.List(ctx, "")
	if err != nil {
		return types.PosterAssignment{}, fmt.Errorf("list movies: %w", err)
	}

	idx := s.posters.Index(ctx)
	result := types.PosterAssignment{Matched: []types.PosterMatch{}}
	for _, m := range movies {
		url, ok := idx.Match(m.Title)
		if !ok || url == m.StoredImagePath() {
			continue
		}
		if err := s.movies.SetImagePath(ctx, m.ID, url); err != nil {
			return result, fmt.Errorf("set poster for movie %d: %w", m.ID, err)
		}
		result.Updated++
		result.Matched = append(result.Matched, types.PosterMatch{ID: m.ID, Title: m.Title, ImagePath: url})
	}

	s.logger.InfoContext(ctx, "posters assigned",
		slog.Int("actor_id", actor.UserID),
		slog.Int("movies", len(movies)),
		slog.Int("indexed", idx.Len()),
		slog.Int("updated", result.Updated))
	return result, nil
}

func (s *ReviewService) posterURL(ctx context.Context, m types.Movie, idx posters.Index) string {
	if stored := m.StoredImagePath(); stored != "" {
		return stored
	}
	url, _ := s.posters.Resolve(ctx, m.Title, idx)
	return url
}
