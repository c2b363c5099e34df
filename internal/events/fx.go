package events

import (
	"github.com/smallbiznis/tillpoint/internal/events/publisher"
	"github.com/smallbiznis/tillpoint/internal/events/repository"
	"github.com/smallbiznis/tillpoint/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(repository.Provide),
	fx.Provide(publisher.Provide),
	fx.Provide(service.New),
)
