package rotator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// Rotator picks the promotional link for a caption. Picks are weighted
// random over the enabled links, skipping anything used within the
// recency window; when every link is inside the window it falls back to
// the least recently used one so rotation never stalls.
type Rotator struct {
	gateway   storage.Gateway
	logger    logger.Logger
	links     []domain.Link
	window    int
	fallback  string
	retention time.Duration
	now       func() time.Time
	randFn    func(n int) int
}

type Opts struct {
	fx.In

	Gateway storage.Gateway
	Config  *config.Config
	Logger  logger.Logger
}

func New(opts Opts) (*Rotator, error) {
	links, err := loadLinks(opts.Config.Links.File)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		opts.Logger.Warn("No enabled promo links configured", "file", opts.Config.Links.File)
	}

	return &Rotator{
		gateway:   opts.Gateway,
		logger:    opts.Logger,
		links:     links,
		window:    opts.Config.Links.RecencyWindow,
		fallback:  opts.Config.Links.FallbackText,
		retention: opts.Config.Links.Retention,
		now:       time.Now,
		randFn:    rand.Intn,
	}, nil
}

func loadLinks(path string) ([]domain.Link, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read links file: %w", err)
	}

	var all []domain.Link
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("parse links file %s: %w", path, err)
	}

	var enabled []domain.Link
	for _, link := range all {
		if !link.Enabled || link.URL == "" {
			continue
		}
		if link.Weight <= 0 {
			link.Weight = 1
		}
		if link.Niche == "" {
			link.Niche = "general"
		}
		enabled = append(enabled, link)
	}
	return enabled, nil
}

// Pick chooses a link for the niche and records the usage. With no links
// configured it returns the fallback text and records nothing.
func (r *Rotator) Pick(ctx context.Context, niche string) (string, error) {
	candidates := r.forNiche(niche)
	if len(candidates) == 0 {
		return r.fallback, nil
	}

	recent, err := r.gateway.RecentLinkUsage(ctx, niche, r.window)
	if err != nil {
		return "", fmt.Errorf("load recent link usage: %w", err)
	}
	used := make(map[string]time.Time, len(recent))
	for _, usage := range recent {
		if _, seen := used[usage.URL]; !seen {
			used[usage.URL] = usage.UsedAt
		}
	}

	var fresh []domain.Link
	for _, link := range candidates {
		if _, ok := used[link.URL]; !ok {
			fresh = append(fresh, link)
		}
	}

	var chosen domain.Link
	if len(fresh) > 0 {
		chosen = weightedPick(fresh, r.randFn)
	} else {
		chosen = oldestUsed(candidates, used)
	}

	err = r.gateway.AddLinkUsage(ctx, domain.LinkUsage{
		URL:    chosen.URL,
		Niche:  chosen.Niche,
		UsedAt: r.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("record link usage: %w", err)
	}

	// Usage history only matters within the recency window; trim the rest
	// so the table stays bounded. A failed prune never blocks captioning.
	if r.retention > 0 {
		if _, err := r.gateway.PruneLinkUsage(ctx, r.retention); err != nil {
			r.logger.Warn("Failed to prune link usage history", "error", err)
		}
	}
	return chosen.URL, nil
}

func (r *Rotator) forNiche(niche string) []domain.Link {
	if niche == "" {
		return r.links
	}
	var out []domain.Link
	for _, link := range r.links {
		if link.Niche == niche {
			out = append(out, link)
		}
	}
	if out == nil {
		// Unknown niche falls back to the whole pool rather than no link.
		return r.links
	}
	return out
}

func weightedPick(links []domain.Link, randFn func(int) int) domain.Link {
	total := 0
	for _, link := range links {
		total += link.Weight
	}
	n := randFn(total)
	for _, link := range links {
		n -= link.Weight
		if n < 0 {
			return link
		}
	}
	return links[len(links)-1]
}

// oldestUsed returns the candidate whose last use is furthest in the past.
func oldestUsed(links []domain.Link, used map[string]time.Time) domain.Link {
	chosen := links[0]
	chosenAt, ok := used[chosen.URL]
	if !ok {
		return chosen
	}
	for _, link := range links[1:] {
		at, ok := used[link.URL]
		if !ok {
			return link
		}
		if at.Before(chosenAt) {
			chosen, chosenAt = link, at
		}
	}
	return chosen
}
