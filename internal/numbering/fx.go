package numbering

import "go.uber.org/fx"

var Module = fx.Module("numbering",
	fx.Provide(NewAllocator),
)
