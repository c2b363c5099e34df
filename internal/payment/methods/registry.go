package methods

import (
	"strings"

	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
)

// Registry resolves a requested method name to its handler. Only the four
// order payment methods are accepted.
type Registry struct {
	handlers map[orderdomain.PaymentMethod]domain.Handler
}

func NewRegistry(handlers ...domain.Handler) *Registry {
	registry := &Registry{handlers: map[orderdomain.PaymentMethod]domain.Handler{}}
	for _, handler := range handlers {
		if handler == nil || !known(handler.Method()) {
			continue
		}
		registry.handlers[handler.Method()] = handler
	}
	return registry
}

func (r *Registry) Lookup(method string) (domain.Handler, error) {
	if r == nil {
		return nil, domain.ErrUnsupportedMethod
	}
	handler, ok := r.handlers[orderdomain.PaymentMethod(strings.ToUpper(strings.TrimSpace(method)))]
	if !ok {
		return nil, domain.ErrUnsupportedMethod
	}
	return handler, nil
}

func known(method orderdomain.PaymentMethod) bool {
	switch method {
	case orderdomain.PaymentCash,
		orderdomain.PaymentCard,
		orderdomain.PaymentLoyaltyPoints,
		orderdomain.PaymentStoreCredit:
		return true
	}
	return false
}
