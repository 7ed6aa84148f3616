package payment

import (
	"github.com/smallbiznis/pixbot/internal/payment/adapters"
	"github.com/smallbiznis/pixbot/internal/payment/adapters/mercadopago"
	"github.com/smallbiznis/pixbot/internal/payment/domain"
	"github.com/smallbiznis/pixbot/internal/payment/repository"
	"github.com/smallbiznis/pixbot/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(mercadopago.Provide),
	fx.Provide(func(client *mercadopago.Client) domain.Gateway { return client }),
	fx.Provide(func(gateway domain.Gateway) *adapters.Registry {
		return adapters.NewRegistry(gateway)
	}),
	fx.Provide(webhook.NewService),
)
