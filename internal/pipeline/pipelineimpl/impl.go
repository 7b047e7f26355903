package pipelineimpl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/captioner"
	"github.com/clipworks/clipfarm/internal/clipfinder"
	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/downloader"
	"github.com/clipworks/clipfarm/internal/editor"
	"github.com/clipworks/clipfarm/internal/monitor"
	"github.com/clipworks/clipfarm/internal/notifier"
	"github.com/clipworks/clipfarm/internal/pipeline"
	"github.com/clipworks/clipfarm/internal/rotator"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/transcriber"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
	"github.com/clipworks/clipfarm/pkg/retry"
)

type Opts struct {
	fx.In

	Gateway     storage.Gateway
	Monitor     monitor.Client
	Downloader  downloader.Client
	Transcriber transcriber.Client
	ClipFinder  clipfinder.Client
	Editor      editor.Client
	Captioner   captioner.Client
	Rotator     *rotator.Rotator
	Notifier    notifier.Client
	Config      *config.Config
	Logger      logger.Logger
}

type PipelineImpl struct {
	Gateway     storage.Gateway
	Monitor     monitor.Client
	Downloader  downloader.Client
	Transcriber transcriber.Client
	ClipFinder  clipfinder.Client
	Editor      editor.Client
	Captioner   captioner.Client
	Rotator     *rotator.Rotator
	Notifier    notifier.Client
	Config      *config.Config
	Logger      logger.Logger
}

func New(opts Opts) *PipelineImpl {
	return &PipelineImpl{
		Gateway:     opts.Gateway,
		Monitor:     opts.Monitor,
		Downloader:  opts.Downloader,
		Transcriber: opts.Transcriber,
		ClipFinder:  opts.ClipFinder,
		Editor:      opts.Editor,
		Captioner:   opts.Captioner,
		Rotator:     opts.Rotator,
		Notifier:    opts.Notifier,
		Config:      opts.Config,
		Logger:      opts.Logger,
	}
}

var _ pipeline.Client = (*PipelineImpl)(nil)

// ScheduleDailyRun installs the full pass at the configured hour.
func (p *PipelineImpl) ScheduleDailyRun(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create pipeline scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(gocron.NewAtTime(uint(p.Config.Pipeline.DailyRunHour), 0, 0)),
		),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := p.RunOnce(ctx); err != nil {
				p.Logger.Error("Daily pipeline run failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule daily pipeline job: %w", err)
	}

	sched.Start()
	p.Logger.Info("Daily pipeline run scheduled", "hour", p.Config.Pipeline.DailyRunHour)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			p.Logger.Error("Failed to shut down pipeline scheduler", "error", err)
		}
	}()
	return nil
}

// RunOnce discovers new videos, then processes everything that has work
// pending, a fixed-size batch at a time over a worker pool.
func (p *PipelineImpl) RunOnce(ctx context.Context) error {
	if err := p.discover(ctx); err != nil {
		// Discovery trouble shouldn't stop processing of the backlog.
		p.Logger.Error("Discovery pass failed", "error", err)
	}

	batch, err := p.collectWork(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		p.Logger.Info("No pipeline work pending")
		return nil
	}

	pool, err := ants.NewPool(p.Config.Pipeline.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, clip := range batch {
		clip := clip
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			p.process(ctx, clip)
		})
		if submitErr != nil {
			wg.Done()
			p.Logger.Error("Failed to submit pipeline task", "clip_id", clip.ID, "error", submitErr)
		}
	}
	wg.Wait()

	p.Logger.Info("Pipeline pass finished", "items", len(batch))
	return nil
}

// discover pulls each channel's feed and registers unseen videos. The
// derived id scheme makes rediscovery a no-op upsert.
func (p *PipelineImpl) discover(ctx context.Context) error {
	channels := p.Config.ChannelIDs()
	if len(channels) == 0 {
		p.Logger.Warn("No channels configured, skipping discovery")
		return nil
	}

	var firstErr error
	for _, channelID := range channels {
		var videos []monitor.Video
		err := retry.Do(ctx, p.Logger, "fetch channel feed", func() error {
			var fetchErr error
			videos, fetchErr = p.Monitor.LatestVideos(ctx, channelID, p.Config.Pipeline.MaxPerChannel)
			return fetchErr
		}, retry.DefaultConfig())
		if err != nil {
			p.Logger.Error("Channel feed unavailable", "channel", channelID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, video := range videos {
			if err := p.register(ctx, video); err != nil {
				p.Logger.Error("Failed to register video", "video_id", video.ID, "error", err)
			}
		}
	}
	return firstErr
}

func (p *PipelineImpl) register(ctx context.Context, video monitor.Video) error {
	if _, err := p.Gateway.GetClip(ctx, video.ID); err == nil {
		return nil // already known, possibly mid-pipeline
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	clip := domain.Clip{
		ID:           video.ID,
		SourceID:     video.ID,
		SourceURL:    video.URL,
		SourceTitle:  video.Title,
		State:        domain.StateDiscovered,
		Checkpoint:   domain.StateDiscovered,
		DiscoveredAt: time.Now().UTC(),
	}
	if err := p.Gateway.UpsertClip(ctx, clip); err != nil {
		return err
	}
	p.Logger.Info("Discovered video", "video_id", video.ID, "title", video.Title)
	return nil
}

// collectWork gathers everything the engine owns: items mid-pipeline plus
// failed items that still have retry budget.
func (p *PipelineImpl) collectWork(ctx context.Context) ([]domain.Clip, error) {
	var batch []domain.Clip
	seen := make(map[string]bool)

	states := []domain.ClipState{
		domain.StateDiscovered,
		domain.StateDownloaded,
		domain.StateTranscribed,
		domain.StateClipsIdentified,
		domain.StateEdited,
		domain.StateCaptioned,
		domain.StateFailed,
	}
	for _, state := range states {
		clips, err := p.Gateway.ListClips(ctx, storage.ClipFilter{
			State: state,
			Order: storage.OldestFirst,
			Limit: p.Config.Pipeline.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list clips in %s: %w", state, err)
		}
		for _, clip := range clips {
			if seen[clip.ID] {
				continue
			}
			if clip.State == domain.StateFailed && clip.RetryCount >= p.Config.Pipeline.MaxRetries {
				continue
			}
			// A source item parked at clips_identified is finished; its
			// children carry on from there.
			if clip.IsSource() && clip.Checkpoint == domain.StateClipsIdentified {
				continue
			}
			seen[clip.ID] = true
			batch = append(batch, clip)
		}
	}
	return batch, nil
}

// ProcessItem reruns one item from its checkpoint. Unlike the batch pass
// it ignores the retry budget; it exists for the operator.
func (p *PipelineImpl) ProcessItem(ctx context.Context, id string) error {
	clip, err := p.Gateway.GetClip(ctx, id)
	if err != nil {
		return err
	}
	p.process(ctx, *clip)
	return nil
}
