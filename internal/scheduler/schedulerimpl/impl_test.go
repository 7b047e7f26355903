package schedulerimpl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/poster"
	"github.com/clipworks/clipfarm/internal/poster/mocks"
	"github.com/clipworks/clipfarm/internal/ratelimit"
	"github.com/clipworks/clipfarm/internal/storage/storagetest"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type noopNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *noopNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func newTestScheduler(t *testing.T, gateway *storagetest.Gateway, post poster.Client) *SchedulerImpl {
	t.Helper()

	cfg := &config.Config{}
	cfg.Scheduler.BatchSize = 10
	cfg.Scheduler.DelayMin = 0
	cfg.Scheduler.DelayMax = 0
	cfg.Scheduler.PostTimeout = time.Minute
	cfg.Scheduler.CredExpiry = 30 * 24 * time.Hour
	cfg.Scheduler.CredWarn = 7 * 24 * time.Hour

	s := New(Opts{
		Gateway:  gateway,
		Poster:   post,
		Notifier: &noopNotifier{},
		Limiter:  ratelimit.NewInMemoryLimiter(1000, time.Second, 1000),
		Config:   cfg,
		Logger:   logger.New(logger.Opts{}),
	})
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	s.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func seedQueued(t *testing.T, gateway *storagetest.Gateway, platform string, ids ...string) {
	t.Helper()
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		caption := "caption for " + id
		require.NoError(t, gateway.UpsertClip(context.Background(), domain.Clip{
			ID:           id,
			SourceID:     id,
			Platform:     platform,
			Caption:      &caption,
			State:        domain.StateQueued,
			Checkpoint:   domain.StateQueued,
			MediaPath:    "/clips/" + id + ".mp4",
			DiscoveredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func seedAccount(t *testing.T, gateway *storagetest.Gateway, platform, name string, cap int) string {
	t.Helper()
	id := domain.AccountID(platform, name)
	require.NoError(t, gateway.UpsertAccount(context.Background(), domain.Account{
		ID:                   id,
		Platform:             platform,
		Name:                 name,
		CredentialsPath:      "/creds/" + name + ".json",
		CredentialsUpdatedAt: time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC),
		DailyCap:             cap,
		Weight:               1,
	}))
	return id
}

func enablePosting(t *testing.T, gateway *storagetest.Gateway, platforms ...string) {
	t.Helper()
	require.NoError(t, gateway.SetSetting(context.Background(), domain.SettingAutoPostingEnabled, "1"))
	for _, platform := range platforms {
		require.NoError(t, gateway.SetSetting(context.Background(), domain.SettingAutoPostingPrefix+platform, "1"))
	}
}

func TestRunCycleRespectsGlobalSwitch(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)
	// No Post expectation: any dispatch fails the test.

	seedQueued(t, gateway, "tiktok", "video42:0")
	seedAccount(t, gateway, "tiktok", "main", 5)

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	clip, err := gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)
}

func TestRunCycleRespectsPlatformToggle(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)

	seedQueued(t, gateway, "tiktok", "video42:0")
	seedAccount(t, gateway, "tiktok", "main", 5)
	require.NoError(t, gateway.SetSetting(context.Background(), domain.SettingAutoPostingEnabled, "1"))
	// The tiktok toggle is absent, which reads as off.

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	clip, err := gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)
}

func TestRunCyclePostsOldestFirstUnderCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)

	seedQueued(t, gateway, "tiktok", "video42:0", "video42:1", "video42:2")
	accountID := seedAccount(t, gateway, "tiktok", "main", 2)
	enablePosting(t, gateway, "tiktok")

	var posted []string
	post.EXPECT().Post(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req poster.Request) (*poster.Receipt, error) {
			posted = append(posted, req.ClipID)
			return &poster.Receipt{PostID: "p-" + req.ClipID}, nil
		}).Times(2)

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	// Cap of 2: the two oldest go out, the third stays queued.
	assert.Equal(t, []string{"video42:0", "video42:1"}, posted)

	third, err := gateway.GetClip(context.Background(), "video42:2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, third.State)

	account, err := gateway.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.PostsToday)
	assert.Equal(t, "2025-08-01", account.PostDay)

	// The exhausted cap is recorded for the dashboard.
	logs := gateway.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "scheduler", logs[0].Component)
}

func TestFailedDispatchConsumesCapAndParksClip(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)

	seedQueued(t, gateway, "tiktok", "video42:0")
	accountID := seedAccount(t, gateway, "tiktok", "main", 5)
	enablePosting(t, gateway, "tiktok")

	post.EXPECT().Post(gomock.Any(), gomock.Any()).Return(nil, errors.New("sidecar timeout"))

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	clip, err := gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePostFailed, clip.State)
	require.NotNil(t, clip.ErrorDetail)
	assert.Contains(t, *clip.ErrorDetail, "sidecar timeout")

	// The reservation stands: the platform may have accepted the upload.
	account, err := gateway.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, account.PostsToday)

	posts := gateway.Posts()
	require.Len(t, posts, 1)
	assert.False(t, posts[0].Success)

	// A later cycle must not touch the parked clip.
	require.NoError(t, s.RunCycle(context.Background()))
	clip, err = gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePostFailed, clip.State)
}

func TestZeroCapAccountNeverPosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)
	// No Post expectation: any dispatch fails the test.

	seedQueued(t, gateway, "tiktok", "video42:0")
	accountID := seedAccount(t, gateway, "tiktok", "paused", 0)
	enablePosting(t, gateway, "tiktok")

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	clip, err := gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)

	account, err := gateway.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.PostsToday)
}

func TestExpiredCredentialsBlockPosting(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)

	seedQueued(t, gateway, "tiktok", "video42:0")
	id := domain.AccountID("tiktok", "stale")
	require.NoError(t, gateway.UpsertAccount(context.Background(), domain.Account{
		ID:                   id,
		Platform:             "tiktok",
		Name:                 "stale",
		CredentialsUpdatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		DailyCap:             5,
		Weight:               1,
	}))
	enablePosting(t, gateway, "tiktok")

	s := newTestScheduler(t, gateway, post)
	require.NoError(t, s.RunCycle(context.Background()))

	clip, err := gateway.GetClip(context.Background(), "video42:0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, clip.State)
}

func TestConcurrentCyclesNeverExceedCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := storagetest.New()
	post := mocks.NewMockClient(ctrl)

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, domain.SegmentClipID("video42", i))
	}
	seedQueued(t, gateway, "tiktok", ids...)
	accountID := seedAccount(t, gateway, "tiktok", "main", 5)
	enablePosting(t, gateway, "tiktok")

	post.EXPECT().Post(gomock.Any(), gomock.Any()).Return(&poster.Receipt{PostID: "ok"}, nil).AnyTimes()

	s := newTestScheduler(t, gateway, post)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunCycle(context.Background())
		}()
	}
	wg.Wait()

	account, err := gateway.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.LessOrEqual(t, account.PostsToday, 5)
	assert.Equal(t, 5, account.PostsToday)
}
