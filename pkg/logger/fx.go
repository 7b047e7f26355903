package logger

import (
	"github.com/clipworks/clipfarm/pkg/config"
	"go.uber.org/fx"
)

var FxOption = fx.Annotate(
	func(cfg *config.Config) *Impl {
		return New(
			Opts{
				Env:       cfg.App.Env,
				SentryUrl: cfg.App.SentryUrl,
			},
		)
	},
	fx.As(new(Logger)),
)
