package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cinerate/apiserver/internal/metrics"
	"github.com/cinerate/apiserver/internal/mq"
	"github.com/cinerate/apiserver/types"
)

// ModerationService owns the offense ledger: the submission gate and the
// administrator actions that change a user's standing or remove reviews.
type ModerationService struct {
	users   UserRepository
	reviews ReviewRepository
	events  *mq.Publisher
	logger  *slog.Logger
}

func NewModerationService(users UserRepository, reviews ReviewRepository, events *mq.Publisher, logger *slog.Logger) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{users: users, reviews: reviews, events: events, logger: logger}
}

// CanSubmitReview reports whether the caller may create or update reviews.
func (s *ModerationService) CanSubmitReview(identity types.Identity) bool {
	return types.StandingFor(identity.OffenseCount).CanSubmit()
}

// RecordOffense adds one offense to the author of reviewID. The review
// itself is left in place.
func (s *ModerationService) RecordOffense(ctx context.Context, actor types.Identity, reviewID int) (types.OffenseResult, error) {
	if err := requireAdmin(actor); err != nil {
		return types.OffenseResult{}, err
	}

	result, err := s.users.IncrementOffenseForReview(ctx, reviewID)
	if err != nil {
		return types.OffenseResult{}, fmt.Errorf("record offense for review %d: %w", reviewID, err)
	}

	metrics.OffensesRecorded.Inc()
	s.logger.InfoContext(ctx, "offense recorded",
		slog.Int("actor_id", actor.UserID),
		slog.Int("review_id", reviewID),
		slog.Int("user_id", result.UserID),
		slog.Int("offense_count", result.OffenseCount),
		slog.String("standing", result.Standing.String()))

	count := result.OffenseCount
	s.events.Publish(ctx, mq.Event{
		Type:         mq.EventOffenseRecorded,
		ActorID:      actor.UserID,
		UserID:       result.UserID,
		ReviewID:     reviewID,
		OffenseCount: &count,
		Standing:     result.Standing.String(),
	})
	return result, nil
}

// SetOffenseCount overwrites a user's offense count. There is no upper
// bound; counts past the threshold simply stay blocked.
func (s *ModerationService) SetOffenseCount(ctx context.Context, actor types.Identity, userID, count int) (types.OffenseResult, error) {
	if err := requireAdmin(actor); err != nil {
		return types.OffenseResult{}, err
	}
	if count < 0 {
		return types.OffenseResult{}, &types.ValidationError{
			Field:   "offense_count",
			Message: "offense count must not be negative",
		}
	}

	result, err := s.users.SetOffenseCount(ctx, userID, count)
	if err != nil {
		return types.OffenseResult{}, fmt.Errorf("set offense count for user %d: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "offense count set",
		slog.Int("actor_id", actor.UserID),
		slog.Int("user_id", userID),
		slog.Int("offense_count", result.OffenseCount))

	s.events.Publish(ctx, mq.Event{
		Type:         mq.EventOffenseCountSet,
		ActorID:      actor.UserID,
		UserID:       userID,
		OffenseCount: &count,
		Standing:     result.Standing.String(),
	})
	return result, nil
}

// DeleteReview removes a review. Deleting a review that is already gone
// succeeds. Offense counts are not touched.
func (s *ModerationService) DeleteReview(ctx context.Context, actor types.Identity, reviewID int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	deleted, err := s.reviews.Delete(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("delete review %d: %w", reviewID, err)
	}
	if !deleted {
		return nil
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.Int("actor_id", actor.UserID),
		slog.Int("review_id", reviewID))
	s.events.Publish(ctx, mq.Event{
		Type:     mq.EventReviewDeleted,
		ActorID:  actor.UserID,
		ReviewID: reviewID,
	})
	return nil
}

// ListOffenders returns every user with at least one offense, highest
// count first.
func (s *ModerationService) ListOffenders(ctx context.Context, actor types.Identity) ([]types.Offender, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.ListOffenders(ctx)
}
