package ticket

import "go.uber.org/fx"

var Module = fx.Module("ticket",
	fx.Provide(New),
)
