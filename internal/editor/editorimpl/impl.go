package editorimpl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/editor"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type EditorImpl struct {
	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *EditorImpl {
	return &EditorImpl{
		Config: opts.Config,
		Logger: opts.Logger,
	}
}

var _ editor.Client = (*EditorImpl)(nil)

// Edit cuts the window, crops to 9:16 and burns in subtitles built from
// the transcript segments overlapping the window.
func (e *EditorImpl) Edit(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment) (string, error) {
	if err := os.MkdirAll(e.Config.Pipeline.ClipsDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure clips dir: %w", err)
	}

	base := strings.ReplaceAll(clip.ID, ":", "_")
	outPath := filepath.Join(e.Config.Pipeline.ClipsDir, base+".mp4")
	srtPath := filepath.Join(e.Config.Pipeline.ClipsDir, base+".srt")

	window := domain.SegmentsInRange(segments, clip.SegmentStart, clip.SegmentEnd)
	if err := writeSRT(srtPath, window, clip.SegmentStart); err != nil {
		return "", err
	}

	filter := "crop=ih*9/16:ih,scale=1080:1920"
	if len(window) > 0 {
		filter += ",subtitles=" + escapeFilterPath(srtPath) +
			":force_style='FontSize=14,PrimaryColour=&HFFFFFF&,OutlineColour=&H000000&,Outline=2'"
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(clip.SegmentStart),
		"-to", formatSeconds(clip.SegmentEnd),
		"-i", clip.MediaPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-c:a", "aac",
		outPath,
	}

	cmd := exec.CommandContext(ctx, e.Config.Tools.Ffmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed for %s: %w: %s", clip.ID, err, tail(output))
	}

	e.Logger.Info("Edited clip", "clip_id", clip.ID, "path", outPath)
	return outPath, nil
}

// writeSRT emits subtitles with timestamps rebased to the clip start.
func writeSRT(path string, segments []domain.TranscriptSegment, offset float64) error {
	var b strings.Builder
	for i, seg := range segments {
		start := seg.Start - offset
		end := seg.End - offset
		if start < 0 {
			start = 0
		}
		if end <= start {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(start), srtTimestamp(end), seg.Text)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.2f", seconds)
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter graph,
// where ':' is an option separator.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, `:`, `\:`)
	return "'" + path + "'"
}

func tail(output []byte) string {
	const max = 400
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
