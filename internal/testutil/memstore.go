// Package testutil provides in-memory repositories for exercising the
// services and handlers without a database.
//
// Usage:
//
//	db := testutil.NewMemDB()
//	admin := db.AddUser("root", true, 0)
//	movie := db.AddMovie("Heat", "Crime", 1995)
//	svc := services.NewReviewService(db.Movies(), db.Reviews(), ...)
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cinerate/apiserver/internal/store"
	"github.com/cinerate/apiserver/types"
)

type reviewKey struct {
	movieID int
	userID  int
}

// MemDB is a thread-safe stand-in for the Postgres schema. Each write
// takes the single lock, which gives the same atomicity the SQL
// statements have.
type MemDB struct {
	mu      sync.Mutex
	nextID  int
	users   map[int]types.User
	movies  map[int]types.Movie
	reviews map[int]types.Review
	byPair  map[reviewKey]int
	clock   time.Time

	// Writes counts successful mutating calls on any repository.
	Writes int
	// Err, when set, is returned by every repository call.
	Err error
}

func NewMemDB() *MemDB {
	return &MemDB{
		users:   make(map[int]types.User),
		movies:  make(map[int]types.Movie),
		reviews: make(map[int]types.Review),
		byPair:  make(map[reviewKey]int),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering by time is
// deterministic.
func (m *MemDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MemDB) id() int {
	m.nextID++
	return m.nextID
}

func (m *MemDB) AddUser(username string, isAdmin bool, offenses int) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	u := types.User{
		ID:           m.id(),
		Username:     username,
		Email:        username + "@example.com",
		IsAdmin:      isAdmin,
		OffenseCount: offenses,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u
}

func (m *MemDB) AddMovie(title, genre string, year int) types.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv := types.Movie{ID: m.id(), Title: title, Genre: genre, ReleaseYear: year, CreatedAt: m.tick()}
	m.movies[mv.ID] = mv
	return mv
}

func (m *MemDB) User(id int) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *MemDB) Movie(id int) types.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.movies[id]
}

// ReviewsFor returns every stored review of a movie.
func (m *MemDB) ReviewsFor(movieID int) []types.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Review
	for _, r := range m.reviews {
		if r.MovieID == movieID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemDB) Users() *MemUsers     { return &MemUsers{db: m} }
func (m *MemDB) Movies() *MemMovies   { return &MemMovies{db: m} }
func (m *MemDB) Reviews() *MemReviews { return &MemReviews{db: m} }

// MemUsers implements services.UserRepository.
type MemUsers struct{ db *MemDB }

func (r *MemUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.User{}, r.db.Err
	}
	u, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *MemUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.User{}, r.db.Err
	}
	for _, u := range r.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *MemUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.User{}, r.db.Err
	}
	for _, u := range r.db.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	now := r.db.tick()
	user.ID = r.db.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.db.users[user.ID] = user
	r.db.Writes++
	return user, nil
}

func (r *MemUsers) IncrementOffenseForReview(ctx context.Context, reviewID int) (types.OffenseResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.OffenseResult{}, r.db.Err
	}
	review, ok := r.db.reviews[reviewID]
	if !ok {
		return types.OffenseResult{}, store.ErrNotFound
	}
	u, ok := r.db.users[review.UserID]
	if !ok {
		return types.OffenseResult{}, store.ErrNotFound
	}
	u.OffenseCount++
	u.UpdatedAt = r.db.tick()
	r.db.users[u.ID] = u
	r.db.Writes++
	return offenseResult(u), nil
}

func (r *MemUsers) SetOffenseCount(ctx context.Context, userID, count int) (types.OffenseResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.OffenseResult{}, r.db.Err
	}
	u, ok := r.db.users[userID]
	if !ok {
		return types.OffenseResult{}, store.ErrNotFound
	}
	u.OffenseCount = count
	u.UpdatedAt = r.db.tick()
	r.db.users[u.ID] = u
	r.db.Writes++
	return offenseResult(u), nil
}

func (r *MemUsers) ListOffenders(ctx context.Context) ([]types.Offender, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return nil, r.db.Err
	}
	out := []types.Offender{}
	for _, u := range r.db.users {
		if u.OffenseCount < 1 {
			continue
		}
		out = append(out, types.Offender{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			OffenseCount: u.OffenseCount,
			Standing:     types.StandingFor(u.OffenseCount),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OffenseCount != out[j].OffenseCount {
			return out[i].OffenseCount > out[j].OffenseCount
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func offenseResult(u types.User) types.OffenseResult {
	return types.OffenseResult{
		UserID:       u.ID,
		OffenseCount: u.OffenseCount,
		Standing:     types.StandingFor(u.OffenseCount),
	}
}

// MemMovies implements services.MovieRepository.
type MemMovies struct{ db *MemDB }

func (r *MemMovies) List(ctx context.Context, search string) ([]types.Movie, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return nil, r.db.Err
	}
	needle := strings.ToLower(search)
	out := []types.Movie{}
	for _, mv := range r.db.movies {
		if needle == "" ||
			strings.Contains(strings.ToLower(mv.Title), needle) ||
			strings.Contains(strings.ToLower(mv.Genre), needle) {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemMovies) Get(ctx context.Context, id int) (types.Movie, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.Movie{}, r.db.Err
	}
	mv, ok := r.db.movies[id]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	return mv, nil
}

func (r *MemMovies) Exists(ctx context.Context, id int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return false, r.db.Err
	}
	_, ok := r.db.movies[id]
	return ok, nil
}

func (r *MemMovies) SetImagePath(ctx context.Context, id int, imagePath string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return r.db.Err
	}
	mv, ok := r.db.movies[id]
	if !ok {
		return store.ErrNotFound
	}
	mv.ImagePath = &imagePath
	r.db.movies[id] = mv
	r.db.Writes++
	return nil
}

// MemReviews implements services.ReviewRepository.
type MemReviews struct{ db *MemDB }

func (r *MemReviews) Upsert(ctx context.Context, movieID, userID, rating int, comment string) (types.Review, error) {
	if err := types.ValidateRating(rating); err != nil {
		return types.Review{}, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.Review{}, r.db.Err
	}
	if _, ok := r.db.movies[movieID]; !ok {
		return types.Review{}, fmt.Errorf("movie %d: %w", movieID, store.ErrNotFound)
	}
	if _, ok := r.db.users[userID]; !ok {
		return types.Review{}, fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}

	now := r.db.tick()
	key := reviewKey{movieID: movieID, userID: userID}
	if id, ok := r.db.byPair[key]; ok {
		existing := r.db.reviews[id]
		existing.Rating = rating
		existing.Comment = comment
		existing.UpdatedAt = now
		r.db.reviews[id] = existing
		r.db.Writes++
		return existing, nil
	}

	review := types.Review{
		ID:        r.db.id(),
		MovieID:   movieID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.db.reviews[review.ID] = review
	r.db.byPair[key] = review.ID
	r.db.Writes++
	return review, nil
}

func (r *MemReviews) Aggregate(ctx context.Context, movieID int) (types.Aggregate, error) {
	aggs, err := r.Aggregates(ctx, []int{movieID})
	if err != nil {
		return types.Aggregate{}, err
	}
	return aggs[movieID], nil
}

func (r *MemReviews) Aggregates(ctx context.Context, movieIDs []int) (map[int]types.Aggregate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return nil, r.db.Err
	}
	wanted := make(map[int]bool, len(movieIDs))
	for _, id := range movieIDs {
		wanted[id] = true
	}
	counts := make(map[int]int)
	sums := make(map[int]int64)
	for _, rv := range r.db.reviews {
		if wanted[rv.MovieID] {
			counts[rv.MovieID]++
			sums[rv.MovieID] += int64(rv.Rating)
		}
	}
	out := make(map[int]types.Aggregate, len(movieIDs))
	for _, id := range movieIDs {
		out[id] = types.NewAggregate(counts[id], sums[id])
	}
	return out, nil
}

func (r *MemReviews) ListByMovie(ctx context.Context, movieID int) ([]types.ReviewEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return nil, r.db.Err
	}
	var reviews []types.Review
	for _, rv := range r.db.reviews {
		if rv.MovieID == movieID {
			reviews = append(reviews, rv)
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ID > reviews[j].ID
	})
	out := make([]types.ReviewEntry, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, types.ReviewEntry{
			ID:        rv.ID,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt,
			Username:  r.db.users[rv.UserID].Username,
		})
	}
	return out, nil
}

func (r *MemReviews) Get(ctx context.Context, id int) (types.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.Review{}, r.db.Err
	}
	rv, ok := r.db.reviews[id]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return rv, nil
}

func (r *MemReviews) GetByMovieAndUser(ctx context.Context, movieID, userID int) (types.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return types.Review{}, r.db.Err
	}
	id, ok := r.db.byPair[reviewKey{movieID: movieID, userID: userID}]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return r.db.reviews[id], nil
}

func (r *MemReviews) Delete(ctx context.Context, id int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.Err != nil {
		return false, r.db.Err
	}
	rv, ok := r.db.reviews[id]
	if !ok {
		return false, nil
	}
	delete(r.db.reviews, id)
	delete(r.db.byPair, reviewKey{movieID: rv.MovieID, userID: rv.UserID})
	r.db.Writes++
	return true, nil
}
