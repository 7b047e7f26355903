package schedulerimpl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/health"
	"github.com/clipworks/clipfarm/internal/notifier"
	"github.com/clipworks/clipfarm/internal/poster"
	"github.com/clipworks/clipfarm/internal/ratelimit"
	"github.com/clipworks/clipfarm/internal/scheduler"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Gateway  storage.Gateway
	Poster   poster.Client
	Notifier notifier.Client
	Limiter  ratelimit.Limiter
	Config   *config.Config
	Logger   logger.Logger
}

type SchedulerImpl struct {
	Gateway  storage.Gateway
	Poster   poster.Client
	Notifier notifier.Client
	Limiter  ratelimit.Limiter
	Config   *config.Config
	Logger   logger.Logger

	mu      sync.Mutex
	rrIndex map[string]int
	warned  map[string]bool

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Opts) *SchedulerImpl {
	return &SchedulerImpl{
		Gateway:  opts.Gateway,
		Poster:   opts.Poster,
		Notifier: opts.Notifier,
		Limiter:  opts.Limiter,
		Config:   opts.Config,
		Logger:   opts.Logger,
		rrIndex:  make(map[string]int),
		warned:   make(map[string]bool),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

var _ scheduler.Client = (*SchedulerImpl)(nil)

// ScheduleCycles installs the posting job on a randomized interval so the
// account activity doesn't look machine-timed.
func (s *SchedulerImpl) ScheduleCycles(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create posting scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationRandomJob(s.Config.Scheduler.IntervalMin, s.Config.Scheduler.IntervalMax),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := s.RunCycle(ctx); err != nil {
				s.Logger.Error("Posting cycle failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule posting job: %w", err)
	}

	sched.Start()
	s.Logger.Info("Posting cycles scheduled",
		"min_interval", s.Config.Scheduler.IntervalMin,
		"max_interval", s.Config.Scheduler.IntervalMax,
	)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			s.Logger.Error("Failed to shut down posting scheduler", "error", err)
		}
	}()
	return nil
}

// RunCycle posts one batch of queued clips, oldest first. Every dispatch
// is preceded by a successful cap reservation; a dispatch that then fails
// still consumes the slot, because the platform may have accepted the
// post before the error surfaced.
func (s *SchedulerImpl) RunCycle(ctx context.Context) error {
	enabled, err := s.settingOn(ctx, domain.SettingAutoPostingEnabled)
	if err != nil {
		return err
	}
	if !enabled {
		s.Logger.Info("Auto-posting disabled, skipping cycle")
		return nil
	}

	clips, err := s.Gateway.ListClips(ctx, storage.ClipFilter{
		State: domain.StateQueued,
		Order: storage.OldestFirst,
		Limit: s.Config.Scheduler.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("list queued clips: %w", err)
	}
	if len(clips) == 0 {
		s.Logger.Debug("Queue empty, nothing to post")
		return nil
	}

	for i := range clips {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.postOne(ctx, &clips[i])
	}
	return nil
}

func (s *SchedulerImpl) postOne(ctx context.Context, clip *domain.Clip) {
	platformOn, err := s.settingOn(ctx, domain.SettingAutoPostingPrefix+clip.Platform)
	if err != nil {
		s.Logger.Error("Failed to read platform toggle", "platform", clip.Platform, "error", err)
		return
	}
	if !platformOn {
		s.Logger.Debug("Platform posting disabled", "platform", clip.Platform, "clip_id", clip.ID)
		return
	}

	account := s.reserveAccount(ctx, clip.Platform)
	if account == nil {
		s.constraintUnmet(ctx, clip)
		return
	}

	if err := s.humanDelay(ctx); err != nil {
		return
	}

	s.dispatch(ctx, clip, account)
}

// reserveAccount walks the platform's eligible accounts round-robin and
// returns the first one it wins a cap reservation on.
func (s *SchedulerImpl) reserveAccount(ctx context.Context, platform string) *domain.Account {
	accounts, err := s.Gateway.ListAccounts(ctx, platform)
	if err != nil {
		s.Logger.Error("Failed to list accounts", "platform", platform, "error", err)
		return nil
	}

	eligible := s.eligible(accounts)
	if len(eligible) == 0 {
		return nil
	}

	start := s.nextIndex(platform, len(eligible))
	day := domain.PostDayOf(s.now())

	for i := 0; i < len(eligible); i++ {
		account := eligible[(start+i)%len(eligible)]
		if !s.Limiter.Allow(account.ID) {
			s.Logger.Debug("Account rate limited", "account_id", account.ID)
			continue
		}
		ok, err := s.Gateway.TryIncrementPostCount(ctx, account.ID, day, account.DailyCap)
		if err != nil {
			s.Logger.Error("Cap reservation failed", "account_id", account.ID, "error", err)
			continue
		}
		if ok {
			return &account
		}
	}
	return nil
}

// eligible filters out accounts with expired credentials and nudges the
// operator once per account when expiry is close.
func (s *SchedulerImpl) eligible(accounts []domain.Account) []domain.Account {
	now := s.now().UTC()
	expiry := s.Config.Scheduler.CredExpiry
	warn := s.Config.Scheduler.CredWarn

	var out []domain.Account
	for _, account := range accounts {
		switch health.Evaluate(account.CredentialsUpdatedAt, now, expiry, warn) {
		case health.Expired:
			s.warnOnce(account.ID, fmt.Sprintf(
				"Account %s credentials expired; posting suspended until they are refreshed.", account.ID))
		case health.ExpiringSoon:
			s.warnOnce(account.ID, fmt.Sprintf(
				"Account %s credentials expire soon; refresh the session.", account.ID))
			out = append(out, account)
		default:
			out = append(out, account)
		}
	}
	return out
}

func (s *SchedulerImpl) warnOnce(accountID, text string) {
	s.mu.Lock()
	already := s.warned[accountID]
	s.warned[accountID] = true
	s.mu.Unlock()
	if !already {
		s.Notifier.Notify(text)
	}
}

func (s *SchedulerImpl) nextIndex(platform string, n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.rrIndex[platform] % n
	s.rrIndex[platform]++
	return idx
}

func (s *SchedulerImpl) constraintUnmet(ctx context.Context, clip *domain.Clip) {
	s.Logger.Warn("No account can take the post", "clip_id", clip.ID, "platform", clip.Platform)
	err := s.Gateway.AddLog(ctx, domain.LogEntry{
		Level:     domain.LogWarn,
		Component: "scheduler",
		Message:   fmt.Sprintf("no eligible account with capacity for %s on %s; clip stays queued", clip.ID, clip.Platform),
	})
	if err != nil {
		s.Logger.Error("Failed to record scheduling log", "error", err)
	}
}

func (s *SchedulerImpl) humanDelay(ctx context.Context) error {
	min := s.Config.Scheduler.DelayMin
	max := s.Config.Scheduler.DelayMax
	if max <= min {
		return s.sleep(ctx, min)
	}
	jitter := time.Duration(rand.Int63n(int64(max - min)))
	return s.sleep(ctx, min+jitter)
}

func (s *SchedulerImpl) dispatch(ctx context.Context, clip *domain.Clip, account *domain.Account) {
	caption := ""
	if clip.Caption != nil {
		caption = *clip.Caption
	}

	postCtx, cancel := context.WithTimeout(ctx, s.Config.Scheduler.PostTimeout)
	defer cancel()

	receipt, err := s.Poster.Post(postCtx, poster.Request{
		ClipID:          clip.ID,
		Platform:        clip.Platform,
		AccountID:       account.ID,
		CredentialsPath: account.CredentialsPath,
		MediaPath:       clip.MediaPath,
		MediaURL:        clip.MediaURL,
		Caption:         caption,
	})

	now := s.now().UTC()
	if err != nil {
		// The platform may have accepted the upload before the error, so
		// the clip parks in post_failed for a human to resolve. Nothing
		// retries it automatically.
		s.Logger.Error("Post dispatch failed", "clip_id", clip.ID, "account_id", account.ID, "error", err)
		detail := err.Error()
		clip.State = domain.StatePostFailed
		clip.ErrorDetail = &detail
		if upErr := s.Gateway.UpsertClip(ctx, *clip); upErr != nil {
			s.Logger.Error("Failed to persist post_failed state", "clip_id", clip.ID, "error", upErr)
		}
		s.recordPost(ctx, clip, account, now, false, "", detail)
		s.Notifier.Notify(fmt.Sprintf("Post failed for %s on %s (%s): %s", clip.ID, clip.Platform, account.ID, detail))
		return
	}

	clip.State = domain.StatePosted
	clip.ErrorDetail = nil
	clip.PostedAt = &now
	if upErr := s.Gateway.UpsertClip(ctx, *clip); upErr != nil {
		s.Logger.Error("Failed to persist posted state", "clip_id", clip.ID, "error", upErr)
	}
	s.recordPost(ctx, clip, account, now, true, receipt.PostID, "")
	s.Logger.Info("Clip posted", "clip_id", clip.ID, "account_id", account.ID, "post_id", receipt.PostID)
}

func (s *SchedulerImpl) recordPost(ctx context.Context, clip *domain.Clip, account *domain.Account,
	at time.Time, success bool, receipt, detail string) {
	err := s.Gateway.AddPost(ctx, domain.Post{
		ClipID:      clip.ID,
		Platform:    clip.Platform,
		AccountID:   account.ID,
		PostedAt:    at,
		Success:     success,
		Receipt:     receipt,
		ErrorDetail: detail,
	})
	if err != nil {
		s.Logger.Error("Failed to record post history", "clip_id", clip.ID, "error", err)
	}
}

func (s *SchedulerImpl) settingOn(ctx context.Context, key string) (bool, error) {
	value, err := s.Gateway.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return domain.BoolSetting(value), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
