package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// State is a worker's derived liveness. It is computed from heartbeat
// recency on read; nothing ever writes "offline".
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Classify derives a worker's state from its last heartbeat. A worker is
// online only while the heartbeat is strictly younger than the threshold.
func Classify(lastSeen, now time.Time, threshold time.Duration) State {
	if now.Sub(lastSeen) >= threshold {
		return Offline
	}
	return Online
}

// Worker periodically refreshes this instance's heartbeat row.
type Worker struct {
	gateway   storage.Gateway
	logger    logger.Logger
	workerID  string
	interval  time.Duration
	threshold time.Duration
}

type Opts struct {
	fx.In

	Gateway storage.Gateway
	Config  *config.Config
	Logger  logger.Logger
}

func New(opts Opts) *Worker {
	return &Worker{
		gateway:   opts.Gateway,
		logger:    opts.Logger,
		workerID:  opts.Config.App.WorkerID,
		interval:  opts.Config.Liveness.Interval,
		threshold: opts.Config.Liveness.Threshold,
	}
}

// Start beats once immediately, then on the configured interval until the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.beat(ctx)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create liveness scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			w.beat(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule heartbeat job: %w", err)
	}

	scheduler.Start()
	w.logger.Info("Liveness heartbeat started", "worker_id", w.workerID, "interval", w.interval)

	go func() {
		<-ctx.Done()
		if err := scheduler.Shutdown(); err != nil {
			w.logger.Error("Failed to shut down liveness scheduler", "error", err)
		}
	}()
	return nil
}

func (w *Worker) beat(ctx context.Context) {
	err := w.gateway.UpsertHeartbeat(ctx, domain.Heartbeat{
		WorkerID: w.workerID,
		Status:   "running",
		LastSeen: time.Now().UTC(),
	})
	if err != nil {
		// A missed beat only flips the dashboard to offline; keep going.
		w.logger.Warn("Failed to write heartbeat", "worker_id", w.workerID, "error", err)
	}
}

// Check reports the liveness of a worker id for the status endpoint.
func (w *Worker) Check(ctx context.Context, workerID string) (State, error) {
	hb, err := w.gateway.GetHeartbeat(ctx, workerID)
	if err != nil {
		return Offline, err
	}
	return Classify(hb.LastSeen, time.Now().UTC(), w.threshold), nil
}
