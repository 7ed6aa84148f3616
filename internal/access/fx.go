package access

import (
	"github.com/smallbiznis/pixbot/internal/access/repository"
	"github.com/smallbiznis/pixbot/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
