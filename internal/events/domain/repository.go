package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *OutboxEvent) error
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) error
	MarkAttemptFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, nextAttemptAt time.Time, lastError string) error
}
