package domain

// TranscriptSegment is one timed piece of transcribed speech.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ClipWindow is a candidate highlight window inside a source video.
type ClipWindow struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Reason string  `json:"reason"`
}

// SegmentsInRange returns the transcript segments overlapping [start, end].
func SegmentsInRange(segments []TranscriptSegment, start, end float64) []TranscriptSegment {
	var out []TranscriptSegment
	for _, seg := range segments {
		if (seg.Start >= start && seg.Start <= end) || (seg.Start <= start && start <= seg.End) {
			out = append(out, seg)
		}
	}
	return out
}
