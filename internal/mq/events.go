package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cinerate/apiserver/internal/metrics"
)

type EventType string

const (
	EventReviewSubmitted EventType = "review.submitted"
	EventReviewDeleted   EventType = "review.deleted"
	EventOffenseRecorded EventType = "user.offense_recorded"
	EventOffenseCountSet EventType = "user.offense_count_set"
)

// AttrEventType carries the event type as a message attribute so brokers
// can filter without decoding the body.
const AttrEventType = "event_type"

// Event describes a review or moderation change. Fields that do not apply
// to a type are left zero and omitted from the payload.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	ActorID      int       `json:"actor_id,omitempty"`
	UserID       int       `json:"user_id,omitempty"`
	MovieID      int       `json:"movie_id,omitempty"`
	ReviewID     int       `json:"review_id,omitempty"`
	Rating       int       `json:"rating,omitempty"`
	OffenseCount *int      `json:"offense_count,omitempty"`
	Standing     string    `json:"standing,omitempty"`
}

// Publisher sends events to a single topic. Publishing is best effort: a
// broker failure is logged and counted but never returned, so moderation
// writes do not depend on broker availability. A Publisher with no backend
// drops everything.
type Publisher struct {
	backend Backend
	topic   string
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(backend Backend, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{backend: backend, topic: topic, logger: logger, now: time.Now}
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.backend != nil
}

func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if !p.Enabled() {
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.fail(ctx, evt, err)
		return
	}

	attrs := map[string]string{AttrEventType: string(evt.Type)}
	if _, err := p.backend.Publish(ctx, p.topic, data, attrs); err != nil {
		p.fail(ctx, evt, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(evt.Type), "ok").Inc()
}

func (p *Publisher) fail(ctx context.Context, evt Event, err error) {
	metrics.EventsPublished.WithLabelValues(string(evt.Type), "error").Inc()
	p.logger.WarnContext(ctx, "failed to publish event",
		slog.String("event_type", string(evt.Type)),
		slog.String("event_id", evt.ID),
		slog.String("error", err.Error()))
}

// Subscribe decodes events from the topic and hands them to fn. Payloads
// that are not events are logged and acked so they are not redelivered.
func (p *Publisher) Subscribe(ctx context.Context, fn func(ctx context.Context, evt Event) error) error {
	if !p.Enabled() {
		return fmt.Errorf("no message queue backend configured")
	}
	return p.backend.Subscribe(ctx, p.topic, func(ctx context.Context, msg Message) error {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			p.logger.WarnContext(ctx, "dropping undecodable event",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
			return nil
		}
		return fn(ctx, evt)
	})
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.backend.Close()
}
