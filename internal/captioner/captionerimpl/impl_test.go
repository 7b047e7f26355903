package captionerimpl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type fakeOllama struct {
	response string
	err      error
}

func (f *fakeOllama) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func newCaptioner(t *testing.T, model *fakeOllama) *CaptionerImpl {
	t.Helper()
	return New(Opts{
		Ollama: model,
		Config: &config.Config{},
		Logger: logger.New(logger.Opts{}),
	})
}

var clip = domain.Clip{
	ID:           "video42:0",
	SourceTitle:  "How to invest your first 1000",
	SegmentStart: 0,
	SegmentEnd:   45,
}

var segments = []domain.TranscriptSegment{
	{Start: 0, End: 45, Text: "put your money to work early"},
}

func TestCaptionUsesModelAndAppendsLink(t *testing.T) {
	c := newCaptioner(t, &fakeOllama{response: `"Start small, start now. #investing #money #wealth"`})

	got, err := c.Caption(context.Background(), clip, segments, "https://promo.example")
	require.NoError(t, err)
	assert.Contains(t, got, "Start small, start now.")
	assert.Contains(t, got, "https://promo.example")
	assert.NotContains(t, got, `"`)
}

func TestCaptionFallsBackWhenModelFails(t *testing.T) {
	c := newCaptioner(t, &fakeOllama{err: errors.New("connection refused")})

	got, err := c.Caption(context.Background(), clip, segments, "https://promo.example")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "#")
	assert.Contains(t, got, "https://promo.example")
	// The excerpt mentions money, so the topic hashtags should too.
	assert.Contains(t, got, "#money")
}

func TestCaptionFallsBackOnEmptyModelOutput(t *testing.T) {
	c := newCaptioner(t, &fakeOllama{response: "   "})

	got, err := c.Caption(context.Background(), clip, segments, "")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestTemplateCaptionGenericTopic(t *testing.T) {
	got := templateCaption("Some title", "nothing matching any keyword here at all")
	assert.Contains(t, got, "#shorts")
	assert.Contains(t, got, "Some title")
}
