package captionerimpl

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/captioner"
	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/ollama"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Ollama ollama.Client
	Config *config.Config
	Logger logger.Logger
}

type CaptionerImpl struct {
	Ollama ollama.Client
	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) *CaptionerImpl {
	return &CaptionerImpl{
		Ollama: opts.Ollama,
		Config: opts.Config,
		Logger: opts.Logger,
	}
}

var _ captioner.Client = (*CaptionerImpl)(nil)

const promptTemplate = `Write a short social media caption for a vertical video clip.
The clip is from a video titled %q. This is what is said in the clip:

%s

Rules: at most 2 sentences, a hook first, 3 to 5 hashtags at the end, no emojis in the hashtags, no quotes around the caption. Respond with the caption only.`

// Caption asks the model for a caption and falls back to a template when
// the model is unreachable or returns junk. A caption failure must never
// stall the pipeline.
func (c *CaptionerImpl) Caption(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment, link string) (string, error) {
	excerpt := excerptText(segments, clip.SegmentStart, clip.SegmentEnd)

	text, err := c.generate(ctx, clip.SourceTitle, excerpt)
	if err != nil {
		c.Logger.Warn("Caption generation failed, using template", "clip_id", clip.ID, "error", err)
		text = templateCaption(clip.SourceTitle, excerpt)
	}

	if link != "" {
		text = text + "\n\n" + link
	}
	return text, nil
}

func (c *CaptionerImpl) generate(ctx context.Context, title, excerpt string) (string, error) {
	response, err := c.Ollama.Generate(ctx, fmt.Sprintf(promptTemplate, title, excerpt))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(strings.Trim(strings.TrimSpace(response), `"`))
	if text == "" || len(text) > 2200 {
		return "", fmt.Errorf("unusable model caption (%d chars)", len(text))
	}
	return text, nil
}

var hooks = []string{
	"Wait for it...",
	"You need to hear this.",
	"This changes everything.",
	"Most people get this wrong.",
	"Nobody talks about this.",
}

var topicTags = map[string]string{
	"money":    "#money #finance #wealth",
	"invest":   "#investing #stocks #money",
	"business": "#business #entrepreneur #hustle",
	"fitness":  "#fitness #gym #health",
	"workout":  "#workout #fitness #motivation",
	"food":     "#food #cooking #recipe",
	"tech":     "#tech #technology #ai",
	"code":     "#coding #programming #tech",
	"game":     "#gaming #gamer #games",
}

// templateCaption is the offline fallback: hook, title, topic hashtags.
func templateCaption(title, excerpt string) string {
	hook := hooks[rand.Intn(len(hooks))]

	tags := "#shorts #viral #fyp"
	haystack := strings.ToLower(title + " " + excerpt)
	for keyword, topicSet := range topicTags {
		if strings.Contains(haystack, keyword) {
			tags = topicSet + " #shorts"
			break
		}
	}

	if title == "" {
		return fmt.Sprintf("%s\n\n%s", hook, tags)
	}
	return fmt.Sprintf("%s %s\n\n%s", hook, title, tags)
}

func excerptText(segments []domain.TranscriptSegment, start, end float64) string {
	var parts []string
	for _, seg := range domain.SegmentsInRange(segments, start, end) {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
