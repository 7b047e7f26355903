package pipelineimpl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/monitor"
	"github.com/clipworks/clipfarm/internal/rotator"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/storage/storagetest"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type stubMonitor struct {
	videos []monitor.Video
}

func (s *stubMonitor) LatestVideos(ctx context.Context, channelID string, limit int) ([]monitor.Video, error) {
	if limit > 0 && len(s.videos) > limit {
		return s.videos[:limit], nil
	}
	return s.videos, nil
}

type stubDownloader struct {
	mu    sync.Mutex
	calls int
}

func (s *stubDownloader) Download(ctx context.Context, videoID, sourceURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "/downloads/" + videoID + ".mp4", nil
}

func (s *stubDownloader) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubTranscriber struct {
	mu       sync.Mutex
	calls    int
	segments []domain.TranscriptSegment
}

func (s *stubTranscriber) Transcribe(ctx context.Context, videoID, mediaPath string) (string, []domain.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "/transcripts/" + videoID + ".json", s.segments, nil
}

func (s *stubTranscriber) Load(transcriptPath string) ([]domain.TranscriptSegment, error) {
	return s.segments, nil
}

func (s *stubTranscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubFinder struct {
	windows []domain.ClipWindow
}

func (s *stubFinder) FindClips(ctx context.Context, title string, segments []domain.TranscriptSegment) ([]domain.ClipWindow, error) {
	return s.windows, nil
}

type stubEditor struct {
	mu      sync.Mutex
	calls   int
	failsAt int // fail while calls <= failsAt
}

func (s *stubEditor) Edit(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failsAt {
		return "", errors.New("ffmpeg crashed")
	}
	return "/clips/" + clip.ID + ".mp4", nil
}

func (s *stubEditor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubCaptioner struct{}

func (s *stubCaptioner) Caption(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment, link string) (string, error) {
	return "caption for " + clip.ID + "\n\n" + link, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *captureNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *captureNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.texts...)
}

func newTestRotator(t *testing.T, gateway *storagetest.Gateway, log logger.Logger, cfg *config.Config) *rotator.Rotator {
	t.Helper()
	r, err := rotator.New(rotator.Opts{Gateway: gateway, Config: cfg, Logger: log})
	require.NoError(t, err)
	return r
}

type testEngine struct {
	pipeline    *PipelineImpl
	gateway     *storagetest.Gateway
	downloader  *stubDownloader
	transcriber *stubTranscriber
	editor      *stubEditor
	notifier    *captureNotifier
}

func newTestEngine(t *testing.T, editorFailures int) *testEngine {
	t.Helper()

	cfg := &config.Config{}
	cfg.Pipeline.Channels = "UCchan"
	cfg.Pipeline.MaxPerChannel = 3
	cfg.Pipeline.MaxClipsPerVid = 3
	cfg.Pipeline.ClipMinSeconds = 30
	cfg.Pipeline.ClipMaxSeconds = 60
	cfg.Pipeline.MaxRetries = 2
	cfg.Pipeline.BatchSize = 10
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.StepTimeout = time.Minute
	cfg.Pipeline.TargetPlatforms = "tiktok"
	cfg.Links.FallbackText = "Link in bio"

	gateway := storagetest.New()
	log := logger.New(logger.Opts{})

	dl := &stubDownloader{}
	tr := &stubTranscriber{segments: []domain.TranscriptSegment{
		{Start: 0, End: 45, Text: "first highlight"},
		{Start: 50, End: 95, Text: "second highlight"},
	}}
	ed := &stubEditor{failsAt: editorFailures}
	nt := &captureNotifier{}

	rot := newTestRotator(t, gateway, log, cfg)

	p := New(Opts{
		Gateway:     gateway,
		Monitor:     &stubMonitor{videos: []monitor.Video{{ID: "video42", URL: "https://youtu.be/video42", Title: "Big money talk"}}},
		Downloader:  dl,
		Transcriber: tr,
		ClipFinder: &stubFinder{windows: []domain.ClipWindow{
			{Start: 0, End: 45, Reason: "strong hook"},
			{Start: 50, End: 95, Reason: "payoff"},
		}},
		Editor:    ed,
		Captioner: &stubCaptioner{},
		Rotator:   rot,
		Notifier:  nt,
		Config:    cfg,
		Logger:    log,
	})

	return &testEngine{pipeline: p, gateway: gateway, downloader: dl, transcriber: tr, editor: ed, notifier: nt}
}

func TestRunOnceWalksVideoToQueued(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.pipeline.RunOnce(ctx))

	source, err := e.gateway.GetClip(ctx, "video42")
	require.NoError(t, err)
	assert.Equal(t, domain.StateClipsIdentified, source.State)
	assert.Equal(t, domain.StateClipsIdentified, source.Checkpoint)

	// The source fans out into derived items that keep walking to queued.
	require.NoError(t, e.pipeline.RunOnce(ctx))

	for _, id := range []string{"video42:0", "video42:1"} {
		clip, err := e.gateway.GetClip(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, domain.StateQueued, clip.State, id)
		assert.Equal(t, "tiktok", clip.Platform)
		require.NotNil(t, clip.Caption, id)
		assert.Contains(t, *clip.Caption, "Link in bio")
		assert.Equal(t, "/clips/"+id+".mp4", clip.MediaPath)
	}

	assert.Equal(t, 1, e.downloader.count())
	assert.Equal(t, 1, e.transcriber.count())
}

func TestRediscoveryIsIdempotent(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.pipeline.RunOnce(ctx))
	require.NoError(t, e.pipeline.RunOnce(ctx))
	require.NoError(t, e.pipeline.RunOnce(ctx))

	clips, err := e.gateway.ListClips(ctx, storage.ClipFilter{})
	require.NoError(t, err)
	assert.Len(t, clips, 3) // one source, two segments

	// Finished work never reruns.
	assert.Equal(t, 1, e.downloader.count())
	assert.Equal(t, 1, e.transcriber.count())
	assert.Equal(t, 2, e.editor.count())
}

func TestFailureResumesFromCheckpoint(t *testing.T) {
	e := newTestEngine(t, 2) // the first edit of each segment fails
	ctx := context.Background()

	require.NoError(t, e.pipeline.RunOnce(ctx)) // discover + source walk
	require.NoError(t, e.pipeline.RunOnce(ctx)) // segments fail at edit

	clip, err := e.gateway.GetClip(ctx, "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, clip.State)
	assert.Equal(t, domain.StateClipsIdentified, clip.Checkpoint)
	assert.Equal(t, 1, clip.RetryCount)
	require.NotNil(t, clip.ErrorDetail)
	assert.Contains(t, *clip.ErrorDetail, "ffmpeg crashed")

	require.NoError(t, e.pipeline.RunOnce(ctx)) // retry succeeds

	clip, err = e.gateway.GetClip(ctx, "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)

	// The retry resumed at the edit step; earlier steps never reran.
	assert.Equal(t, 1, e.downloader.count())
	assert.Equal(t, 1, e.transcriber.count())
}

func TestRetryBudgetExhaustionParksItem(t *testing.T) {
	e := newTestEngine(t, 1000) // editing never succeeds
	ctx := context.Background()

	require.NoError(t, e.pipeline.RunOnce(ctx)) // discover + source walk
	require.NoError(t, e.pipeline.RunOnce(ctx)) // attempt 1
	require.NoError(t, e.pipeline.RunOnce(ctx)) // attempt 2, budget exhausted
	editsSoFar := e.editor.count()
	require.NoError(t, e.pipeline.RunOnce(ctx)) // must skip the parked items

	assert.Equal(t, editsSoFar, e.editor.count())

	clip, err := e.gateway.GetClip(ctx, "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, clip.State)
	assert.Equal(t, 2, clip.RetryCount)

	// The operator heard about the exhausted budget.
	assert.NotEmpty(t, e.notifier.all())
}

func TestProcessItemIgnoresRetryBudget(t *testing.T) {
	e := newTestEngine(t, 2)
	ctx := context.Background()

	require.NoError(t, e.pipeline.RunOnce(ctx))
	require.NoError(t, e.pipeline.RunOnce(ctx))

	// Manual retry works even when the budget would block the batch pass.
	require.NoError(t, e.pipeline.ProcessItem(ctx, "video42:0"))

	clip, err := e.gateway.GetClip(ctx, "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)
}

func TestProcessItemUnknownID(t *testing.T) {
	e := newTestEngine(t, 0)
	err := e.pipeline.ProcessItem(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
