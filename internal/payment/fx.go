package payment

import (
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/methods"
	"github.com/smallbiznis/tillpoint/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(func(ledger loyaltydomain.Service) *methods.Registry {
		return methods.NewRegistry(
			methods.Cash(),
			methods.Card(),
			methods.LoyaltyPoints(ledger),
			methods.StoreCredit(ledger),
		)
	}),
	fx.Provide(service.New),
)
