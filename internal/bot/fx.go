package bot

import "go.uber.org/fx"

var Module = fx.Module("bot",
	fx.Provide(NewHandler),
	fx.Provide(NewPoller),
	fx.Invoke(registerPoller),
)
