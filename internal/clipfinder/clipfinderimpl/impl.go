package clipfinderimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/clipfinder"
	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/ollama"
	"github.com/clipworks/clipfarm/pkg/config"
	apperrors "github.com/clipworks/clipfarm/pkg/errors"
	"github.com/clipworks/clipfarm/pkg/logger"
)

var errNoSpeech = apperrors.New("no speech in source video")

type Opts struct {
	fx.In

	Ollama ollama.Client
	Config *config.Config
	Logger logger.Logger
}

type ClipFinderImpl struct {
	Ollama ollama.Client
	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *ClipFinderImpl {
	return &ClipFinderImpl{
		Ollama: opts.Ollama,
		Config: opts.Config,
		Logger: opts.Logger,
	}
}

var _ clipfinder.Client = (*ClipFinderImpl)(nil)

const promptTemplate = `You are a short-form video editor. Below is a timestamped transcript of a video titled %q.
Pick up to %d self-contained highlight moments that would work as vertical clips.
Each moment must run between %d and %d seconds.
Respond with ONLY a JSON array, no other text, where each element is:
{"start": <seconds>, "end": <seconds>, "reason": "<one sentence>"}

Transcript:
%s`

// FindClips asks the model for highlight windows and keeps only the ones
// that satisfy the duration bounds. Windows come back sorted by start so
// segment indexes are stable across reruns.
func (f *ClipFinderImpl) FindClips(ctx context.Context, title string, segments []domain.TranscriptSegment) ([]domain.ClipWindow, error) {
	if len(segments) == 0 {
		// Retrying will not conjure speech out of a silent video.
		return nil, apperrors.Permanent(errNoSpeech, "transcript has no segments")
	}

	prompt := fmt.Sprintf(promptTemplate,
		title,
		f.Config.Pipeline.MaxClipsPerVid,
		f.Config.Pipeline.ClipMinSeconds,
		f.Config.Pipeline.ClipMaxSeconds,
		renderTranscript(segments),
	)

	response, err := f.Ollama.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("highlight generation: %w", err)
	}

	windows, err := parseWindows(response)
	if err != nil {
		return nil, err
	}

	minSec := float64(f.Config.Pipeline.ClipMinSeconds)
	maxSec := float64(f.Config.Pipeline.ClipMaxSeconds)

	var valid []domain.ClipWindow
	for _, w := range windows {
		dur := w.End - w.Start
		if w.Start < 0 || dur < minSec || dur > maxSec {
			f.Logger.Debug("Discarding out-of-bounds window", "start", w.Start, "end", w.End)
			continue
		}
		valid = append(valid, w)
	}
	if len(valid) == 0 {
		// Not every video has a highlight; an empty result is a valid
		// answer, not a failure to retry.
		f.Logger.Info("No usable highlight windows", "title", title)
		return nil, nil
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].Start < valid[j].Start })
	if max := f.Config.Pipeline.MaxClipsPerVid; max > 0 && len(valid) > max {
		valid = valid[:max]
	}
	return valid, nil
}

func renderTranscript(segments []domain.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%.1f - %.1f] %s\n", seg.Start, seg.End, seg.Text)
	}
	return b.String()
}

// parseWindows tolerates prose around the JSON array; models rarely obey
// "ONLY a JSON array" to the letter.
func parseWindows(response string) ([]domain.ClipWindow, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in model response")
	}

	var windows []domain.ClipWindow
	if err := json.Unmarshal([]byte(response[start:end+1]), &windows); err != nil {
		return nil, fmt.Errorf("parse highlight windows: %w", err)
	}
	return windows, nil
}
