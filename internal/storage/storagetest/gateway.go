// Package storagetest provides an in-memory Gateway for tests. It mirrors
// the semantics of the real backends, including the atomic daily counter.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

type Gateway struct {
	mu         sync.Mutex
	clips      map[string]domain.Clip
	accounts   map[string]domain.Account
	heartbeats map[string]domain.Heartbeat
	usages     []domain.LinkUsage
	settings   map[string]string
	posts      []domain.Post
	logs       []domain.LogEntry
	nextID     int64

	// MediaURLFor lets a test override StoreMedia results.
	MediaURLFor func(localPath string) string
}

var _ storage.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		clips:      make(map[string]domain.Clip),
		accounts:   make(map[string]domain.Account),
		heartbeats: make(map[string]domain.Heartbeat),
		settings:   make(map[string]string),
	}
}

func (g *Gateway) UpsertClip(ctx context.Context, clip domain.Clip) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	clip.UpdatedAt = time.Now().UTC()
	if clip.DiscoveredAt.IsZero() {
		clip.DiscoveredAt = clip.UpdatedAt
	}
	g.clips[clip.ID] = clip
	return nil
}

func (g *Gateway) GetClip(ctx context.Context, id string) (*domain.Clip, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clip, ok := g.clips[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &clip, nil
}

func (g *Gateway) ListClips(ctx context.Context, filter storage.ClipFilter) ([]domain.Clip, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.Clip
	for _, clip := range g.clips {
		if filter.State != "" && clip.State != filter.State {
			continue
		}
		if filter.Platform != "" && clip.Platform != filter.Platform {
			continue
		}
		out = append(out, clip)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			if filter.Order == storage.NewestFirst {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if filter.Order == storage.NewestFirst {
			return out[i].DiscoveredAt.After(out[j].DiscoveredAt)
		}
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (g *Gateway) DeleteClip(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.clips[id]; !ok {
		return storage.ErrNotFound
	}
	delete(g.clips, id)
	return nil
}

func (g *Gateway) UpsertAccount(ctx context.Context, account domain.Account) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.accounts[account.ID]; ok {
		account.PostsToday = existing.PostsToday
		account.PostDay = existing.PostDay
	}
	g.accounts[account.ID] = account
	return nil
}

func (g *Gateway) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	account, ok := g.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &account, nil
}

func (g *Gateway) ListAccounts(ctx context.Context, platform string) ([]domain.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Account
	for _, account := range g.accounts {
		if platform != "" && account.Platform != platform {
			continue
		}
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) TryIncrementPostCount(ctx context.Context, accountID, day string, cap int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	account, ok := g.accounts[accountID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if account.PostDay != day {
		if cap <= 0 {
			return false, nil
		}
		account.PostDay = day
		account.PostsToday = 1
		g.accounts[accountID] = account
		return true, nil
	}
	if account.PostsToday >= cap {
		return false, nil
	}
	account.PostsToday++
	g.accounts[accountID] = account
	return true, nil
}

func (g *Gateway) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.heartbeats[hb.WorkerID] = hb
	return nil
}

func (g *Gateway) GetHeartbeat(ctx context.Context, workerID string) (*domain.Heartbeat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hb, ok := g.heartbeats[workerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &hb, nil
}

func (g *Gateway) AddLinkUsage(ctx context.Context, usage domain.LinkUsage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	usage.ID = g.nextID
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	g.usages = append(g.usages, usage)
	return nil
}

func (g *Gateway) RecentLinkUsage(ctx context.Context, niche string, limit int) ([]domain.LinkUsage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.LinkUsage
	for _, usage := range g.usages {
		if niche != "" && usage.Niche != niche {
			continue
		}
		out = append(out, usage)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsedAt.Equal(out[j].UsedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UsedAt.After(out[j].UsedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *Gateway) PruneLinkUsage(ctx context.Context, olderThan time.Duration) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var kept []domain.LinkUsage
	var pruned int64
	for _, usage := range g.usages {
		if usage.UsedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, usage)
	}
	g.usages = kept
	return pruned, nil
}

func (g *Gateway) GetSetting(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	value, ok := g.settings[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (g *Gateway) SetSetting(ctx context.Context, key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings[key] = value
	return nil
}

func (g *Gateway) AddPost(ctx context.Context, post domain.Post) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	post.ID = g.nextID
	if post.PostedAt.IsZero() {
		post.PostedAt = time.Now().UTC()
	}
	g.posts = append(g.posts, post)
	return nil
}

func (g *Gateway) ListPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]domain.Post{}, g.posts...)
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *Gateway) AddLog(ctx context.Context, entry domain.LogEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	entry.ID = g.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	g.logs = append(g.logs, entry)
	return nil
}

func (g *Gateway) ListLogs(ctx context.Context, filter storage.LogFilter) ([]domain.LogEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.LogEntry
	for _, entry := range g.logs {
		if filter.Component != "" && entry.Component != filter.Component {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (g *Gateway) StoreMedia(ctx context.Context, localPath string) (string, error) {
	if g.MediaURLFor != nil {
		return g.MediaURLFor(localPath), nil
	}
	return localPath, nil
}

func (g *Gateway) Name() string                   { return "memory" }
func (g *Gateway) Ping(ctx context.Context) error { return nil }
func (g *Gateway) Close(ctx context.Context) error {
	return nil
}

// Logs returns a copy of the recorded log entries for assertions.
func (g *Gateway) Logs() []domain.LogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.LogEntry{}, g.logs...)
}

// Posts returns a copy of the recorded post history for assertions.
func (g *Gateway) Posts() []domain.Post {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Post{}, g.posts...)
}
