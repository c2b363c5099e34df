package publisher

import (
	"context"
	"fmt"

	"github.com/smallbiznis/tillpoint/internal/config"
	"github.com/smallbiznis/tillpoint/internal/events/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provide selects the broker named by EVENTS_BROKER and closes it on stop.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.Publisher, error) {
	var (
		pub domain.Publisher
		err error
	)
	switch cfg.Events.Broker {
	case "", config.BrokerLog:
		pub = NewLogPublisher(log)
	case config.BrokerRabbitMQ:
		pub, err = DialRabbit(cfg.Events.RabbitURL, cfg.Events.Exchange)
	case config.BrokerKafka:
		pub, err = DialKafka(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.Events.Broker)
	}
	if err != nil {
		return nil, err
	}

	log.Info("events publisher ready", zap.String("broker", cfg.Events.Broker))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}
