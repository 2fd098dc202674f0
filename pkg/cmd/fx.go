package cmd

import "go.uber.org/fx"

var Module = fx.Module("cli",
	fx.Provide(
		fx.Annotate(check, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(update, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(markUpToDate, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(markErrorPerformed, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(markErrorReverted, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(clearCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(cleanCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(disableConstraints, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(updateSequences, fx.ResultTags(`group:"commands"`)),
	),
	fx.Invoke(Run),
)
