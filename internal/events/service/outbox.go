package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/events/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxAttempts = 10
	maxBackoff  = time.Hour
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Publisher domain.Publisher
	Clock     clock.Clock
}

type Outbox struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	publisher domain.Publisher
	clock     clock.Clock
}

func New(p Params) domain.Outbox {
	return &Outbox{
		db:        p.DB,
		log:       p.Log.Named("events.outbox"),
		genID:     p.GenID,
		repo:      p.Repo,
		publisher: p.Publisher,
		clock:     p.Clock,
	}
}

func (o *Outbox) Enqueue(ctx context.Context, tx *gorm.DB, topic string, aggregateID snowflake.ID, payload any) (*domain.OutboxEvent, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, domain.ErrInvalidTopic
	}
	if aggregateID == 0 {
		return nil, domain.ErrInvalidAggregate
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	now := o.clock.Now()
	event := &domain.OutboxEvent{
		ID:            o.genID.Generate(),
		EventID:       ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Topic:         topic,
		AggregateID:   aggregateID,
		Payload:       datatypes.JSON(body),
		Status:        domain.StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := o.repo.Insert(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (o *Outbox) Relay(ctx context.Context, limit int) (domain.RelayResult, error) {
	var result domain.RelayResult
	if limit <= 0 {
		limit = 100
	}

	due, err := o.repo.ListDue(ctx, o.db, o.clock.Now(), limit)
	if err != nil {
		return result, err
	}

	for _, event := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		msg := domain.Message{
			EventID:     event.EventID,
			Topic:       event.Topic,
			AggregateID: event.AggregateID.String(),
			OccurredAt:  event.CreatedAt,
			Body:        []byte(event.Payload),
		}
		if pubErr := o.publisher.Publish(ctx, msg); pubErr != nil {
			result.Failed++
			if err := o.recordFailure(ctx, event, pubErr); err != nil {
				return result, err
			}
			continue
		}

		if err := o.repo.MarkSent(ctx, o.db, event.ID, o.clock.Now()); err != nil {
			return result, err
		}
		result.Sent++
	}
	return result, nil
}

func (o *Outbox) recordFailure(ctx context.Context, event *domain.OutboxEvent, pubErr error) error {
	attempts := event.Attempts + 1
	status := domain.StatusPending
	if attempts >= maxAttempts {
		status = domain.StatusFailed
	}

	o.log.Warn("outbox publish failed",
		zap.String("event_id", event.EventID),
		zap.String("topic", event.Topic),
		zap.Int("attempts", attempts),
		zap.Error(pubErr),
	)
	return o.repo.MarkAttemptFailed(ctx, o.db, event.ID, status, o.clock.Now().Add(backoff(attempts)), pubErr.Error())
}

// backoff doubles from one second per attempt, capped at an hour.
func backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return time.Second
	}
	if attempts > 12 {
		return maxBackoff
	}
	d := time.Second << (attempts - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
