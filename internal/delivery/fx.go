package delivery

import (
	"github.com/smallbiznis/pixbot/internal/delivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery.service",
	fx.Provide(service.New),
)
