package editorimpl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/internal/domain"
)

func TestSrtTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", srtTimestamp(0))
	assert.Equal(t, "00:00:12,500", srtTimestamp(12.5))
	assert.Equal(t, "01:01:01,250", srtTimestamp(3661.25))
}

func TestWriteSRTRebasesTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.srt")
	segments := []domain.TranscriptSegment{
		{Start: 48, End: 55, Text: "starts before the window"},
		{Start: 55, End: 62, Text: "fully inside"},
	}

	require.NoError(t, writeSRT(path, segments, 50))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	// The first segment is clamped to the clip start.
	assert.Contains(t, content, "00:00:00,000 --> 00:00:05,000")
	assert.Contains(t, content, "00:00:05,000 --> 00:00:12,000")
	assert.Contains(t, content, "fully inside")
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `'/tmp/a.srt'`, escapeFilterPath("/tmp/a.srt"))
	assert.Equal(t, `'C\:\\clips\\a.srt'`, escapeFilterPath(`C:\clips\a.srt`))
}
