package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Outbox interface {
	// Enqueue stores payload as a pending event inside tx.
	Enqueue(ctx context.Context, tx *gorm.DB, topic string, aggregateID snowflake.ID, payload any) (*OutboxEvent, error)
	// Relay publishes due events and returns how many were sent and failed.
	Relay(ctx context.Context, limit int) (RelayResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type RelayResult struct {
	Sent   int
	Failed int
}

var (
	ErrInvalidTopic     = errors.New("invalid_topic")
	ErrInvalidAggregate = errors.New("invalid_aggregate_id")
)
