package transcriberimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/transcriber"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type TranscriberImpl struct {
	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *TranscriberImpl {
	return &TranscriberImpl{
		Config: opts.Config,
		Logger: opts.Logger,
	}
}

var _ transcriber.Client = (*TranscriberImpl)(nil)

// whisperOutput matches the JSON whisper writes with --output_format json.
type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs whisper on the media file and writes a normalized
// segment list next to the raw output. Returns the normalized path.
func (t *TranscriberImpl) Transcribe(ctx context.Context, videoID, mediaPath string) (string, []domain.TranscriptSegment, error) {
	outDir := t.Config.Pipeline.TranscriptsDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("ensure transcripts dir: %w", err)
	}

	transcriptPath := filepath.Join(outDir, videoID+".json")
	if segments, err := t.Load(transcriptPath); err == nil {
		t.Logger.Info("Transcript already exists", "video_id", videoID, "segments", len(segments))
		return transcriptPath, segments, nil
	}

	args := []string{
		mediaPath,
		"--model", "base",
		"--output_format", "json",
		"--output_dir", outDir,
	}

	cmd := exec.CommandContext(ctx, t.Config.Tools.Whisper, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("whisper failed for %s: %w: %s", videoID, err, tail(output))
	}

	// Whisper names its output after the media file, not the video id.
	rawPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))+".json")
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("read whisper output: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]domain.TranscriptSegment, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segments = append(segments, domain.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	normalized, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(transcriptPath, normalized, 0o644); err != nil {
		return "", nil, fmt.Errorf("write transcript: %w", err)
	}

	t.Logger.Info("Transcribed video", "video_id", videoID, "segments", len(segments))
	return transcriptPath, segments, nil
}

func (t *TranscriberImpl) Load(transcriptPath string) ([]domain.TranscriptSegment, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, err
	}
	var segments []domain.TranscriptSegment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", transcriptPath, err)
	}
	return segments, nil
}

func tail(output []byte) string {
	const max = 400
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
