package sidecarimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/poster"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// SidecarImpl publishes through a local browser-automation sidecar that
// owns the platform sessions. The sidecar exposes POST /post and does the
// actual upload; we only hand it the media and the caption.
type SidecarImpl struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logger.Logger
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *SidecarImpl {
	return &SidecarImpl{
		baseURL: opts.Config.Scheduler.SidecarURL,
		token:   opts.Config.Scheduler.SidecarToken,
		http:    &http.Client{Timeout: opts.Config.Scheduler.PostTimeout},
		logger:  opts.Logger,
	}
}

var _ poster.Client = (*SidecarImpl)(nil)

type postResponse struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

func (s *SidecarImpl) Post(ctx context.Context, req poster.Request) (*poster.Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode post request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/post", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build post request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call poster sidecar: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read sidecar response: %w", err)
	}

	var parsed postResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode sidecar response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return nil, fmt.Errorf("sidecar rejected post for %s: %s", req.ClipID, parsed.Error)
		}
		return nil, fmt.Errorf("sidecar returned %d for %s", resp.StatusCode, req.ClipID)
	}

	s.logger.Info("Posted clip", "clip_id", req.ClipID, "platform", req.Platform, "post_id", parsed.PostID)
	return &poster.Receipt{PostID: parsed.PostID, PostedAt: time.Now().UTC()}, nil
}
