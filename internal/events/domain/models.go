package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes and relayed to the broker afterwards.
type OutboxEvent struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	EventID       string         `gorm:"type:char(26);not null;uniqueIndex:ux_outbox_events_event_id"`
	Topic         string         `gorm:"type:varchar(64);not null"`
	AggregateID   snowflake.ID   `gorm:"not null;index"`
	Payload       datatypes.JSON `gorm:"not null"`
	Status        Status         `gorm:"type:varchar(16);not null;index:ix_outbox_events_due,priority:1"`
	Attempts      int            `gorm:"not null;default:0"`
	NextAttemptAt time.Time      `gorm:"not null;index:ix_outbox_events_due,priority:2"`
	LastError     string         `gorm:"type:text"`
	CreatedAt     time.Time      `gorm:"not null"`
	SentAt        *time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Message is what a Publisher puts on the wire.
type Message struct {
	EventID     string
	Topic       string
	AggregateID string
	OccurredAt  time.Time
	Body        []byte
}
