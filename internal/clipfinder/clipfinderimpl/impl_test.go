package clipfinderimpl

import (
	"context"
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

func newFinder(t *testing.T, response string) *ClipFinderImpl {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pipeline.MaxClipsPerVid = 3
	cfg.Pipeline.ClipMinSeconds = 30
	cfg.Pipeline.ClipMaxSeconds = 60

	return New(Opts{
		Ollama: &fakeOllama{response: response},
		Config: cfg,
		Logger: logger.New(logger.Opts{}),
	})
}

var sampleSegments = []domain.TranscriptSegment{
	{Start: 0, End: 100, Text: "a long ramble about many things"},
}

func TestFindClipsParsesSurroundingProse(t *testing.T) {
	finder := newFinder(t, `Sure! Here are the moments:
[{"start": 10, "end": 50, "reason": "strong hook"}, {"start": 60, "end": 100, "reason": "payoff"}]
Hope that helps!`)

	windows, err := finder.FindClips(context.Background(), "title", sampleSegments)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, 10.0, windows[0].Start)
	assert.Equal(t, "payoff", windows[1].Reason)
}

func TestFindClipsRejectsOutOfBoundsWindows(t *testing.T) {
	finder := newFinder(t, `[
		{"start": 0, "end": 10, "reason": "too short"},
		{"start": 0, "end": 200, "reason": "too long"},
		{"start": -5, "end": 40, "reason": "negative start"},
		{"start": 20, "end": 60, "reason": "fine"}
	]`)

	windows, err := finder.FindClips(context.Background(), "title", sampleSegments)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "fine", windows[0].Reason)
}

func TestFindClipsSortsAndCaps(t *testing.T) {
	finder := newFinder(t, `[
		{"start": 300, "end": 340, "reason": "d"},
		{"start": 100, "end": 140, "reason": "a"},
		{"start": 200, "end": 240, "reason": "b"},
		{"start": 250, "end": 290, "reason": "c"}
	]`)

	windows, err := finder.FindClips(context.Background(), "title", sampleSegments)
	require.NoError(t, err)
	require.Len(t, windows, 3)
	assert.Equal(t, "a", windows[0].Reason)
	assert.Equal(t, "b", windows[1].Reason)
	assert.Equal(t, "c", windows[2].Reason)
}

func TestFindClipsAllowsEmptyResults(t *testing.T) {
	// Not every video has a highlight; an empty answer must not fail the
	// source item.
	finder := newFinder(t, `[]`)
	windows, err := finder.FindClips(context.Background(), "title", sampleSegments)
	require.NoError(t, err)
	assert.Empty(t, windows)

	// The same goes for an answer whose windows are all out of bounds.
	finder = newFinder(t, `[{"start": 0, "end": 5, "reason": "short"}]`)
	windows, err = finder.FindClips(context.Background(), "title", sampleSegments)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestFindClipsErrors(t *testing.T) {
	finder := newFinder(t, "I could not find anything interesting.")
	_, err := finder.FindClips(context.Background(), "title", sampleSegments)
	assert.Error(t, err)

	_, err = finder.FindClips(context.Background(), "title", nil)
	assert.Error(t, err)
}
