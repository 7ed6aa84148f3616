package purchase

import (
	"github.com/smallbiznis/pixbot/internal/purchase/service"
	"go.uber.org/fx"
)

var Module = fx.Module("purchase.service",
	fx.Provide(service.New),
)
