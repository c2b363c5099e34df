package inventory

import (
	"github.com/smallbiznis/tillpoint/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.service",
	fx.Provide(service.New),
)
