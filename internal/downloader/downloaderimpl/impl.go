package downloaderimpl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/downloader"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type DownloaderImpl struct {
	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *DownloaderImpl {
	return &DownloaderImpl{
		Config: opts.Config,
		Logger: opts.Logger,
	}
}

var _ downloader.Client = (*DownloaderImpl)(nil)

// Download fetches the best mp4 rendition via yt-dlp. An existing file is
// reused so re-running after a downstream failure skips the fetch.
func (d *DownloaderImpl) Download(ctx context.Context, videoID, sourceURL string) (string, error) {
	if err := os.MkdirAll(d.Config.Pipeline.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure downloads dir: %w", err)
	}

	outPath := filepath.Join(d.Config.Pipeline.DownloadsDir, videoID+".mp4")
	if _, err := os.Stat(outPath); err == nil {
		d.Logger.Info("Media already downloaded", "video_id", videoID, "path", outPath)
		return outPath, nil
	}

	args := []string{
		"-f", "best[ext=mp4]/best",
		"-o", outPath,
		"--no-playlist",
		sourceURL,
	}

	cmd := exec.CommandContext(ctx, d.Config.Tools.YtDlp, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w: %s", videoID, err, tail(output))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("yt-dlp reported success but %s is missing", outPath)
	}

	d.Logger.Info("Downloaded source video", "video_id", videoID, "path", outPath)
	return outPath, nil
}

func tail(output []byte) string {
	const max = 400
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
