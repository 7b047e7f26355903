package pipelineimpl

import (
	"context"
	"fmt"

	"github.com/clipworks/clipfarm/internal/domain"
	apperrors "github.com/clipworks/clipfarm/pkg/errors"
)

// process walks one item from its checkpoint toward queued. Each step
// persists its completion before the next one starts, so a crash or a
// failure resumes exactly where work stopped.
func (p *PipelineImpl) process(ctx context.Context, clip domain.Clip) {
	for {
		if ctx.Err() != nil {
			return
		}

		var err error
		switch clip.Checkpoint {
		case domain.StateDiscovered:
			err = p.stepDownload(ctx, &clip)
		case domain.StateDownloaded:
			err = p.stepTranscribe(ctx, &clip)
		case domain.StateTranscribed:
			err = p.stepFindClips(ctx, &clip)
		case domain.StateClipsIdentified:
			if clip.IsSource() {
				return // the derived segments carry on from here
			}
			err = p.stepEdit(ctx, &clip)
		case domain.StateEdited:
			err = p.stepCaption(ctx, &clip)
		case domain.StateCaptioned:
			err = p.stepQueue(ctx, &clip)
		case domain.StateQueued:
			return
		default:
			p.Logger.Error("Item at unexpected checkpoint", "clip_id", clip.ID, "checkpoint", clip.Checkpoint)
			return
		}

		if err != nil {
			p.fail(ctx, &clip, err)
			return
		}
	}
}

func (p *PipelineImpl) fail(ctx context.Context, clip *domain.Clip, stepErr error) {
	p.Logger.Error("Pipeline step failed", "clip_id", clip.ID, "checkpoint", clip.Checkpoint, "error", stepErr)

	clip.Fail(stepErr.Error())
	if apperrors.IsPermanent(stepErr) {
		// No amount of retrying fixes a permanent failure.
		clip.RetryCount = p.Config.Pipeline.MaxRetries
	}
	if err := p.Gateway.UpsertClip(ctx, *clip); err != nil {
		p.Logger.Error("Failed to persist failure", "clip_id", clip.ID, "error", err)
		return
	}

	if clip.RetryCount >= p.Config.Pipeline.MaxRetries {
		p.Notifier.Notify(fmt.Sprintf(
			"Item %s failed %d times at %s and is out of retries: %v",
			clip.ID, clip.RetryCount, clip.Checkpoint, stepErr))
	}
}

// advance persists one completed step.
func (p *PipelineImpl) advance(ctx context.Context, clip *domain.Clip, state domain.ClipState) error {
	clip.Advance(state)
	if err := p.Gateway.UpsertClip(ctx, *clip); err != nil {
		return fmt.Errorf("persist %s: %w", state, err)
	}
	return nil
}

func (p *PipelineImpl) stepDownload(ctx context.Context, clip *domain.Clip) error {
	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()

	mediaPath, err := p.Downloader.Download(stepCtx, clip.SourceID, clip.SourceURL)
	if err != nil {
		return err
	}
	clip.MediaPath = mediaPath
	return p.advance(ctx, clip, domain.StateDownloaded)
}

func (p *PipelineImpl) stepTranscribe(ctx context.Context, clip *domain.Clip) error {
	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()

	transcriptPath, _, err := p.Transcriber.Transcribe(stepCtx, clip.SourceID, clip.MediaPath)
	if err != nil {
		return err
	}
	clip.TranscriptPath = transcriptPath
	return p.advance(ctx, clip, domain.StateTranscribed)
}

// stepFindClips fans the source item out into per-segment items. The
// segment ids are deterministic, so a retry of this step upserts the same
// children instead of minting duplicates.
func (p *PipelineImpl) stepFindClips(ctx context.Context, clip *domain.Clip) error {
	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()

	segments, err := p.Transcriber.Load(clip.TranscriptPath)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	windows, err := p.ClipFinder.FindClips(stepCtx, clip.SourceTitle, segments)
	if err != nil {
		return err
	}

	platforms := p.Config.Platforms()
	for i, window := range windows {
		idx := i
		child := domain.Clip{
			ID:             domain.SegmentClipID(clip.SourceID, idx),
			SourceID:       clip.SourceID,
			SourceURL:      clip.SourceURL,
			SourceTitle:    clip.SourceTitle,
			SegmentIndex:   &idx,
			SegmentStart:   window.Start,
			SegmentEnd:     window.End,
			SegmentReason:  window.Reason,
			MediaPath:      clip.MediaPath,
			TranscriptPath: clip.TranscriptPath,
			State:          domain.StateClipsIdentified,
			Checkpoint:     domain.StateClipsIdentified,
			DiscoveredAt:   clip.DiscoveredAt,
		}
		if len(platforms) > 0 {
			child.Platform = platforms[i%len(platforms)]
		}
		if err := p.Gateway.UpsertClip(ctx, child); err != nil {
			return fmt.Errorf("persist segment %s: %w", child.ID, err)
		}
	}

	p.Logger.Info("Identified highlight segments", "video_id", clip.SourceID, "segments", len(windows))
	return p.advance(ctx, clip, domain.StateClipsIdentified)
}

func (p *PipelineImpl) stepEdit(ctx context.Context, clip *domain.Clip) error {
	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()

	segments, err := p.Transcriber.Load(clip.TranscriptPath)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	clipPath, err := p.Editor.Edit(stepCtx, *clip, segments)
	if err != nil {
		return err
	}

	mediaURL, err := p.Gateway.StoreMedia(stepCtx, clipPath)
	if err != nil {
		return fmt.Errorf("store media: %w", err)
	}

	clip.MediaPath = clipPath
	clip.MediaURL = mediaURL
	return p.advance(ctx, clip, domain.StateEdited)
}

func (p *PipelineImpl) stepCaption(ctx context.Context, clip *domain.Clip) error {
	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()

	segments, err := p.Transcriber.Load(clip.TranscriptPath)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	link, err := p.Rotator.Pick(stepCtx, "")
	if err != nil {
		return fmt.Errorf("pick promo link: %w", err)
	}

	caption, err := p.Captioner.Caption(stepCtx, *clip, segments, link)
	if err != nil {
		return err
	}

	clip.Caption = &caption
	return p.advance(ctx, clip, domain.StateCaptioned)
}

func (p *PipelineImpl) stepQueue(ctx context.Context, clip *domain.Clip) error {
	return p.advance(ctx, clip, domain.StateQueued)
}

func (p *PipelineImpl) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.Config.Pipeline.StepTimeout)
}
