package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/events/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, event_id, topic, aggregate_id, payload, status, attempts, next_attempt_at, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.EventID,
		event.Topic,
		event.AggregateID,
		event.Payload,
		event.Status,
		event.Attempts,
		event.NextAttemptAt,
		event.LastError,
		event.CreatedAt,
	).Error
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	var items []*domain.OutboxEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, topic, aggregate_id, payload, status, attempts, next_attempt_at, last_error, created_at, sent_at
		 FROM outbox_events
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.StatusPending,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_events SET status = ?, sent_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`,
		domain.StatusSent,
		sentAt,
		id,
	).Error
}

func (r *repo) MarkAttemptFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, nextAttemptAt time.Time, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_events SET status = ?, attempts = attempts + 1, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		status,
		nextAttemptAt,
		lastError,
		id,
	).Error
}
