package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cinerate/apiserver/config"
	"github.com/cinerate/apiserver/internal/db"
	"github.com/cinerate/apiserver/internal/mq"
	"github.com/cinerate/apiserver/internal/posters"
	"github.com/cinerate/apiserver/internal/services"
	"github.com/cinerate/apiserver/internal/storage"
	"github.com/cinerate/apiserver/internal/store"
)

// Deps holds the wired services shared by the HTTP server and the CLI
// batch commands.
type Deps struct {
	DB         *sqlx.DB
	Users      *services.UserService
	Moderation *services.ModerationService
	Reviews    *services.ReviewService
	Events     *mq.Publisher
	Posters    *posters.Resolver

	closers []func() error
}

// Build opens the database, poster sources and event backend and wires the
// services on top of them.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	deps := &Deps{}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	deps.DB = dbConn
	deps.closers = append(deps.closers, dbConn.Close)

	sources, closeSources, err := PosterSources(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	if closeSources != nil {
		deps.closers = append(deps.closers, closeSources)
	}

	backend, err := mq.NewBackend(ctx, cfg.MQ)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	deps.Events = mq.NewPublisher(backend, cfg.MQ.Topic, logger)
	deps.closers = append(deps.closers, deps.Events.Close)
	if !deps.Events.Enabled() {
		logger.InfoContext(ctx, "moderation events disabled")
	}

	userRepo := store.NewUserRepository(dbConn)
	reviewRepo := store.NewReviewRepository(dbConn)
	movieRepo := store.NewMovieRepository(dbConn)

	deps.Posters = posters.NewResolver(logger, sources...)
	deps.Users = services.NewUserService(userRepo)
	deps.Moderation = services.NewModerationService(userRepo, reviewRepo, deps.Events, logger)
	deps.Reviews = services.NewReviewService(movieRepo, reviewRepo, deps.Moderation, deps.Posters, deps.Events, logger)
	return deps, nil
}

// Close releases everything Build opened, last opened first.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// PosterSources returns the configured poster sources. Object storage
// backends also return a close function.
func PosterSources(ctx context.Context, cfg config.Config) ([]posters.Source, func() error, error) {
	switch cfg.Posters.Backend {
	case "", config.PosterBackendLocal:
		sources := make([]posters.Source, 0, len(cfg.Posters.Dirs))
		for _, dir := range cfg.Posters.Dirs {
			sources = append(sources, posters.NewDirSource(dir.Dir, dir.URLPrefix))
		}
		return sources, nil, nil
	case config.PosterBackendMinio, config.PosterBackendGCS:
		st, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open poster storage: %w", err)
		}
		return []posters.Source{posters.NewBucketSource(st, cfg.Posters.Prefix, cfg.Posters.URLBase)}, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported poster backend %q", cfg.Posters.Backend)
	}
}
