package storage

import (
	"context"
	"errors"
	"time"

	"github.com/clipworks/clipfarm/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrBadQuery = errors.New("bad query")
)

type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// ClipFilter narrows ListClips. Zero values mean "no constraint".
type ClipFilter struct {
	State    domain.ClipState
	Platform string
	Order    Order
	Limit    int
}

type LogFilter struct {
	Component string
	Limit     int
}

//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=mocks/mock.go -package=mocks

// Gateway is the single persistence contract shared by every backend. All
// three implementations must behave identically; no caller may branch on
// which one is active. It is also the only synchronization point between
// the background loops, so the per-item and per-account mutations below are
// single atomic operations, never read-then-write pairs.
type Gateway interface {
	UpsertClip(ctx context.Context, clip domain.Clip) error
	GetClip(ctx context.Context, id string) (*domain.Clip, error)
	ListClips(ctx context.Context, filter ClipFilter) ([]domain.Clip, error)
	DeleteClip(ctx context.Context, id string) error

	UpsertAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, platform string) ([]domain.Account, error)
	// TryIncrementPostCount bumps the account's daily counter for day iff it
	// is still under cap, resetting it first when the day moved. Returns
	// false when the cap is already reached. This is the only way the
	// counter changes, which is what keeps the daily cap safe under
	// concurrent scheduler ticks.
	TryIncrementPostCount(ctx context.Context, accountID, day string, cap int) (bool, error)

	UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error
	GetHeartbeat(ctx context.Context, workerID string) (*domain.Heartbeat, error)

	AddLinkUsage(ctx context.Context, usage domain.LinkUsage) error
	RecentLinkUsage(ctx context.Context, niche string, limit int) ([]domain.LinkUsage, error)
	PruneLinkUsage(ctx context.Context, olderThan time.Duration) (int64, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	AddPost(ctx context.Context, post domain.Post) error
	ListPosts(ctx context.Context, limit int) ([]domain.Post, error)

	AddLog(ctx context.Context, entry domain.LogEntry) error
	ListLogs(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error)

	// StoreMedia uploads an edited clip and returns the URL the dashboard
	// and the platform adapters use. The local backend returns the local
	// path unchanged.
	StoreMedia(ctx context.Context, localPath string) (string, error)

	Name() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
