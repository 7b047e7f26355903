package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// Client talks to a local Ollama server. Both the highlight finder and
// the caption writer go through it.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type HTTPClient struct {
	baseURL string
	model   string
	http    *http.Client
	logger  logger.Logger
}

func New(opts Opts) *HTTPClient {
	return &HTTPClient{
		baseURL: opts.Config.Ollama.URL,
		model:   opts.Config.Ollama.Model,
		http:    &http.Client{Timeout: 5 * time.Minute},
		logger:  opts.Logger,
	}
}

var _ Client = (*HTTPClient)(nil)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return parsed.Response, nil
}
