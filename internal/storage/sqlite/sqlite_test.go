package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sqlite.Path = filepath.Join(t.TempDir(), "clipfarm.db")

	store, err := Open(cfg, logger.New(logger.Opts{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestClipRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	idx := 1
	caption := "hook first"
	posted := time.Date(2025, 8, 1, 15, 0, 0, 0, time.UTC)
	clip := domain.Clip{
		ID:             "video42:1",
		SourceID:       "video42",
		SourceURL:      "https://youtu.be/video42",
		SourceTitle:    "Big money talk",
		Platform:       "tiktok",
		SegmentIndex:   &idx,
		SegmentStart:   50,
		SegmentEnd:     95,
		SegmentReason:  "payoff",
		MediaPath:      "/clips/video42_1.mp4",
		MediaURL:       "https://bucket/clips/video42_1.mp4",
		TranscriptPath: "/transcripts/video42.json",
		Caption:        &caption,
		State:          domain.StatePosted,
		Checkpoint:     domain.StateQueued,
		RetryCount:     1,
		DiscoveredAt:   time.Date(2025, 8, 1, 2, 0, 0, 0, time.UTC),
		PostedAt:       &posted,
	}
	require.NoError(t, store.UpsertClip(ctx, clip))

	got, err := store.GetClip(ctx, "video42:1")
	require.NoError(t, err)
	assert.Equal(t, clip.SourceID, got.SourceID)
	assert.Equal(t, clip.Platform, got.Platform)
	require.NotNil(t, got.SegmentIndex)
	assert.Equal(t, 1, *got.SegmentIndex)
	require.NotNil(t, got.Caption)
	assert.Equal(t, caption, *got.Caption)
	assert.Equal(t, domain.StatePosted, got.State)
	assert.Equal(t, domain.StateQueued, got.Checkpoint)
	require.NotNil(t, got.PostedAt)
	assert.True(t, posted.Equal(*got.PostedAt))
	assert.Nil(t, got.ErrorDetail)
}

func TestUpsertClipIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	clip := domain.Clip{ID: "video42", SourceID: "video42", SourceURL: "u", State: domain.StateDiscovered, Checkpoint: domain.StateDiscovered}
	require.NoError(t, store.UpsertClip(ctx, clip))

	clip.State = domain.StateDownloaded
	clip.Checkpoint = domain.StateDownloaded
	require.NoError(t, store.UpsertClip(ctx, clip))

	clips, err := store.ListClips(ctx, storage.ClipFilter{})
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, domain.StateDownloaded, clips[0].State)
}

func TestListClipsFiltersAndOrders(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		id       string
		state    domain.ClipState
		platform string
		offset   time.Duration
	}{
		{"a", domain.StateQueued, "tiktok", 0},
		{"b", domain.StateQueued, "tiktok", time.Hour},
		{"c", domain.StateQueued, "instagram", 2 * time.Hour},
		{"d", domain.StateFailed, "tiktok", 3 * time.Hour},
	}
	for _, s := range seed {
		require.NoError(t, store.UpsertClip(ctx, domain.Clip{
			ID: s.id, SourceID: s.id, SourceURL: "u",
			State: s.state, Checkpoint: s.state,
			Platform: s.platform, DiscoveredAt: base.Add(s.offset),
		}))
	}

	queued, err := store.ListClips(ctx, storage.ClipFilter{State: domain.StateQueued, Order: storage.OldestFirst})
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, "a", queued[0].ID)
	assert.Equal(t, "c", queued[2].ID)

	tiktok, err := store.ListClips(ctx, storage.ClipFilter{State: domain.StateQueued, Platform: "tiktok", Order: storage.NewestFirst, Limit: 1})
	require.NoError(t, err)
	require.Len(t, tiktok, 1)
	assert.Equal(t, "b", tiktok[0].ID)
}

func TestGetClipNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetClip(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.DeleteClip(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTryIncrementPostCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	account := domain.Account{
		ID: "tiktok_main", Platform: "tiktok", Name: "main",
		CredentialsUpdatedAt: time.Now().UTC(), DailyCap: 2, Weight: 1,
	}
	require.NoError(t, store.UpsertAccount(ctx, account))

	day := "2025-08-01"
	for i := 0; i < 2; i++ {
		ok, err := store.TryIncrementPostCount(ctx, account.ID, day, 2)
		require.NoError(t, err)
		assert.True(t, ok, "increment %d", i)
	}

	// Cap reached.
	ok, err := store.TryIncrementPostCount(ctx, account.ID, day, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PostsToday)
	assert.Equal(t, day, got.PostDay)

	// A new day resets the counter atomically.
	ok, err = store.TryIncrementPostCount(ctx, account.ID, "2025-08-02", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostsToday)
	assert.Equal(t, "2025-08-02", got.PostDay)

	// Unknown accounts surface as not found, not as a silent false.
	_, err = store.TryIncrementPostCount(ctx, "nobody", day, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTryIncrementPostCountZeroCap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	account := domain.Account{
		ID: "tiktok_paused", Platform: "tiktok", Name: "paused",
		CredentialsUpdatedAt: time.Now().UTC(), Weight: 1,
	}
	require.NoError(t, store.UpsertAccount(ctx, account))

	// A zero cap is how an operator disables an account; even the first
	// post of a fresh day is refused.
	ok, err := store.TryIncrementPostCount(ctx, account.ID, "2025-08-29", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PostsToday)
	assert.Empty(t, got.PostDay)
}

func TestUpsertAccountPreservesCounters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	account := domain.Account{
		ID: "tiktok_main", Platform: "tiktok", Name: "main",
		CredentialsUpdatedAt: time.Now().UTC(), DailyCap: 5, Weight: 1,
	}
	require.NoError(t, store.UpsertAccount(ctx, account))

	ok, err := store.TryIncrementPostCount(ctx, account.ID, "2025-08-01", 5)
	require.NoError(t, err)
	require.True(t, ok)

	// Re-registering the account must not reset today's progress.
	account.DailyCap = 3
	require.NoError(t, store.UpsertAccount(ctx, account))

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.DailyCap)
	assert.Equal(t, 1, got.PostsToday)
	assert.Equal(t, "2025-08-01", got.PostDay)
}

func TestSettings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, "auto_posting_enabled")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetSetting(ctx, "auto_posting_enabled", "1"))
	value, err := store.GetSetting(ctx, "auto_posting_enabled")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	require.NoError(t, store.SetSetting(ctx, "auto_posting_enabled", "0"))
	value, err = store.GetSetting(ctx, "auto_posting_enabled")
	require.NoError(t, err)
	assert.Equal(t, "0", value)
}

func TestHeartbeatRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seen := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertHeartbeat(ctx, domain.Heartbeat{WorkerID: "main", Status: "running", LastSeen: seen}))
	require.NoError(t, store.UpsertHeartbeat(ctx, domain.Heartbeat{WorkerID: "main", Status: "running", LastSeen: seen.Add(30 * time.Second)}))

	hb, err := store.GetHeartbeat(ctx, "main")
	require.NoError(t, err)
	assert.True(t, seen.Add(30*time.Second).Equal(hb.LastSeen))

	_, err = store.GetHeartbeat(ctx, "other")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLinkUsagePrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.AddLinkUsage(ctx, domain.LinkUsage{URL: "https://old.example", Niche: "general", UsedAt: old}))
	require.NoError(t, store.AddLinkUsage(ctx, domain.LinkUsage{URL: "https://new.example", Niche: "general"}))

	pruned, err := store.PruneLinkUsage(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	recent, err := store.RecentLinkUsage(ctx, "general", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "https://new.example", recent[0].URL)
}

func TestPostsAndLogs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPost(ctx, domain.Post{
		ClipID: "video42:0", Platform: "tiktok", AccountID: "tiktok_main",
		Success: true, Receipt: "p-1",
	}))
	require.NoError(t, store.AddPost(ctx, domain.Post{
		ClipID: "video42:1", Platform: "tiktok", AccountID: "tiktok_main",
		Success: false, ErrorDetail: "sidecar timeout",
	}))

	posts, err := store.ListPosts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	require.NoError(t, store.AddLog(ctx, domain.LogEntry{Level: domain.LogWarn, Component: "scheduler", Message: "cap reached"}))
	require.NoError(t, store.AddLog(ctx, domain.LogEntry{Level: domain.LogInfo, Component: "pipeline", Message: "pass done"}))

	logs, err := store.ListLogs(ctx, storage.LogFilter{Component: "scheduler"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "cap reached", logs[0].Message)
}
