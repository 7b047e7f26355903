package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/captioner"
	"github.com/clipworks/clipfarm/internal/captioner/captionerimpl"
	"github.com/clipworks/clipfarm/internal/clipfinder"
	"github.com/clipworks/clipfarm/internal/clipfinder/clipfinderimpl"
	"github.com/clipworks/clipfarm/internal/downloader"
	"github.com/clipworks/clipfarm/internal/downloader/downloaderimpl"
	"github.com/clipworks/clipfarm/internal/editor"
	"github.com/clipworks/clipfarm/internal/editor/editorimpl"
	"github.com/clipworks/clipfarm/internal/liveness"
	"github.com/clipworks/clipfarm/internal/monitor"
	"github.com/clipworks/clipfarm/internal/monitor/monitorimpl"
	"github.com/clipworks/clipfarm/internal/notifier"
	"github.com/clipworks/clipfarm/internal/notifier/telegramimpl"
	"github.com/clipworks/clipfarm/internal/ollama"
	"github.com/clipworks/clipfarm/internal/pipeline"
	"github.com/clipworks/clipfarm/internal/pipeline/pipelineimpl"
	"github.com/clipworks/clipfarm/internal/poster"
	"github.com/clipworks/clipfarm/internal/poster/sidecarimpl"
	"github.com/clipworks/clipfarm/internal/ratelimit"
	"github.com/clipworks/clipfarm/internal/rotator"
	"github.com/clipworks/clipfarm/internal/scheduler"
	"github.com/clipworks/clipfarm/internal/scheduler/schedulerimpl"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/storage/factory"
	"github.com/clipworks/clipfarm/internal/transcriber"
	"github.com/clipworks/clipfarm/internal/transcriber/transcriberimpl"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
	),
	fx.Provide(
		newGateway,
		func() ratelimit.Limiter {
			// One post per account per minute with a little burst headroom.
			return ratelimit.NewInMemoryLimiter(1, time.Minute, 2)
		},
	),
	fx.Provide(
		fx.Annotate(
			ollama.New,
			fx.As(new(ollama.Client)),
		),
		fx.Annotate(
			telegramimpl.New,
			fx.As(new(notifier.Client)),
		),
		fx.Annotate(
			monitorimpl.New,
			fx.As(new(monitor.Client)),
		),
		fx.Annotate(
			downloaderimpl.New,
			fx.As(new(downloader.Client)),
		),
		fx.Annotate(
			transcriberimpl.New,
			fx.As(new(transcriber.Client)),
		),
		fx.Annotate(
			clipfinderimpl.New,
			fx.As(new(clipfinder.Client)),
		),
		fx.Annotate(
			editorimpl.New,
			fx.As(new(editor.Client)),
		),
		fx.Annotate(
			captionerimpl.New,
			fx.As(new(captioner.Client)),
		),
		fx.Annotate(
			sidecarimpl.New,
			fx.As(new(poster.Client)),
		),
		fx.Annotate(
			pipelineimpl.New,
			fx.As(new(pipeline.Client)),
		),
		fx.Annotate(
			schedulerimpl.New,
			fx.As(new(scheduler.Client)),
		),
		rotator.New,
		liveness.New,
	),
	fx.Invoke(run),
)

// newGateway probes the backends and registers the winner's Close on the
// fx lifecycle.
func newGateway(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (storage.Gateway, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway, err := factory.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return gateway.Close(ctx)
		},
	})
	return gateway, nil
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, gateway storage.Gateway,
	pipe pipeline.Client, sched scheduler.Client, beat *liveness.Worker) {

	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go startHTTPServer(log, cfg, gateway, pipe, sched, beat)

			if err := beat.Start(runCtx); err != nil {
				return err
			}
			if err := pipe.ScheduleDailyRun(runCtx); err != nil {
				return err
			}
			if err := sched.ScheduleCycles(runCtx); err != nil {
				return err
			}

			log.Info("Worker started", "backend", gateway.Name(), "worker_id", cfg.App.WorkerID)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
