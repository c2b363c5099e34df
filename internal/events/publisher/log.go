package publisher

import (
	"context"

	"github.com/smallbiznis/tillpoint/internal/events/domain"
	"go.uber.org/zap"
)

// LogPublisher writes events to the application log. Used when no broker is
// configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events.log")}
}

func (p *LogPublisher) Publish(_ context.Context, msg domain.Message) error {
	p.log.Info("event published",
		zap.String("event_id", msg.EventID),
		zap.String("topic", msg.Topic),
		zap.String("aggregate_id", msg.AggregateID),
		zap.ByteString("payload", msg.Body),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
