package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSegmentClipID(t *testing.T) {
	assert.Equal(t, "video42:0", SegmentClipID("video42", 0))
	assert.Equal(t, "video42:3", SegmentClipID("video42", 3))
}

func TestClipFailKeepsCheckpoint(t *testing.T) {
	clip := Clip{ID: "v1", State: StateDownloaded, Checkpoint: StateDownloaded}

	clip.Fail("whisper exploded")

	assert.Equal(t, StateFailed, clip.State)
	assert.Equal(t, StateDownloaded, clip.Checkpoint)
	assert.Equal(t, 1, clip.RetryCount)
	if assert.NotNil(t, clip.ErrorDetail) {
		assert.Equal(t, "whisper exploded", *clip.ErrorDetail)
	}
}

func TestClipAdvanceClearsError(t *testing.T) {
	detail := "old failure"
	clip := Clip{ID: "v1", State: StateFailed, Checkpoint: StateDownloaded, ErrorDetail: &detail}

	clip.Advance(StateTranscribed)

	assert.Equal(t, StateTranscribed, clip.State)
	assert.Equal(t, StateTranscribed, clip.Checkpoint)
	assert.Nil(t, clip.ErrorDetail)
}

func TestIsSource(t *testing.T) {
	source := Clip{ID: "video42"}
	assert.True(t, source.IsSource())

	idx := 1
	child := Clip{ID: "video42:1", SegmentIndex: &idx}
	assert.False(t, child.IsSource())
}

func TestBoolSetting(t *testing.T) {
	assert.True(t, BoolSetting("1"))
	assert.True(t, BoolSetting("true"))
	assert.False(t, BoolSetting("0"))
	assert.False(t, BoolSetting(""))
	assert.False(t, BoolSetting("yes"))
}

func TestPostDayOf(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC; the boundary is UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2025, 8, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-08-02", PostDayOf(at))
}

func TestSegmentsInRange(t *testing.T) {
	segments := []TranscriptSegment{
		{Start: 0, End: 10, Text: "a"},
		{Start: 10, End: 20, Text: "b"},
		{Start: 25, End: 35, Text: "c"},
		{Start: 40, End: 50, Text: "d"},
	}

	got := SegmentsInRange(segments, 8, 30)

	texts := make([]string, 0, len(got))
	for _, seg := range got {
		texts = append(texts, seg.Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
}
