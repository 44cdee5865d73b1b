package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/providers"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// MediaResults holds per-scene media keyed by scene index, so assembly can
// zip them back in order regardless of completion order.
type MediaResults struct {
	CoverImageURL string
	ImageURLs     []string
	NarrationURLs []string
	DialogueURLs  []string
}

// MediaGenerator fans out the image and audio work for one script. Media is
// best-effort: an image that fails all retries leaves its slot empty, failed
// audio is dropped, and only context cancellation aborts the fan-out.
type MediaGenerator struct {
	images providers.ImageGenerator
	speech providers.SpeechSynthesizer

	policy           RetryPolicy
	imageConcurrency int
	audioConcurrency int
	logger           logger.Logger
}

func NewMediaGenerator(images providers.ImageGenerator, speech providers.SpeechSynthesizer, policy RetryPolicy, imageConcurrency, audioConcurrency int, log logger.Logger) *MediaGenerator {
	if imageConcurrency <= 0 {
		imageConcurrency = 4
	}
	if audioConcurrency <= 0 {
		audioConcurrency = 4
	}
	return &MediaGenerator{
		images:           images,
		speech:           speech,
		policy:           policy,
		imageConcurrency: imageConcurrency,
		audioConcurrency: audioConcurrency,
		logger:           log,
	}
}

// Generate runs the image and audio fan-outs concurrently and returns once
// both drain. The returned error is non-nil only when the context died.
func (m *MediaGenerator) Generate(ctx context.Context, script *Script, kind quota.Kind, tier QualityTier, referenceImageURLs []string, voiceByCharacter map[string]string) (*MediaResults, error) {
	results := &MediaResults{
		ImageURLs:     make([]string, len(script.Scenes)),
		NarrationURLs: make([]string, len(script.Scenes)),
		DialogueURLs:  make([]string, len(script.Scenes)),
	}

	imageGroup, imageCtx := errgroup.WithContext(ctx)
	imageGroup.SetLimit(m.imageConcurrency)

	imageGroup.Go(func() error {
		url, err := m.renderImage(imageCtx, "cover", tier.StylePreamble()+". "+script.CoverPrompt, referenceImageURLs)
		if err == nil {
			results.CoverImageURL = url
		}
		return nil
	})
	for i, scene := range script.Scenes {
		i, scene := i, scene
		imageGroup.Go(func() error {
			label := fmt.Sprintf("scene %d", i+1)
			url, err := m.renderImage(imageCtx, label, tier.StylePreamble()+". "+scene.VisualPrompt, referenceImageURLs)
			if err == nil {
				results.ImageURLs[i] = url
			}
			return nil
		})
	}

	audioGroup, audioCtx := errgroup.WithContext(ctx)
	audioGroup.SetLimit(m.audioConcurrency)

	if kind == quota.KindVideo {
		for i, scene := range script.Scenes {
			i, scene := i, scene
			if scene.NarratorText != "" {
				audioGroup.Go(func() error {
					url, err := m.renderSpeech(audioCtx, fmt.Sprintf("scene %d narration", i+1), scene.NarratorText, "")
					if err == nil {
						results.NarrationURLs[i] = url
					}
					return nil
				})
			}
			if scene.Dialogue != "" {
				audioGroup.Go(func() error {
					voiceID := voiceByCharacter[scene.DialogueCharacter]
					url, err := m.renderSpeech(audioCtx, fmt.Sprintf("scene %d dialogue", i+1), scene.Dialogue, voiceID)
					if err == nil {
						results.DialogueURLs[i] = url
					}
					return nil
				})
			}
		}
	}

	imageErr := imageGroup.Wait()
	audioErr := audioGroup.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if imageErr != nil {
		return nil, imageErr
	}
	if audioErr != nil {
		return nil, audioErr
	}

	return results, nil
}

func (m *MediaGenerator) renderImage(ctx context.Context, label, prompt string, referenceImageURLs []string) (string, error) {
	url, err := callWithRetry(ctx, m.logger, "image "+label, m.policy, func(ctx context.Context) (string, error) {
		return m.images.GenerateImage(ctx, prompt, referenceImageURLs)
	})
	if err != nil {
		m.logger.Warn("image generation gave up, slot stays empty", map[string]interface{}{
			"slot":  label,
			"error": err.Error(),
		})
		return "", err
	}
	return url, nil
}

func (m *MediaGenerator) renderSpeech(ctx context.Context, label, text, voiceID string) (string, error) {
	url, err := callWithRetry(ctx, m.logger, "speech "+label, m.policy, func(ctx context.Context) (string, error) {
		return m.speech.SynthesizeSpeech(ctx, text, voiceID)
	})
	if err != nil {
		m.logger.Warn("speech synthesis gave up, audio dropped", map[string]interface{}{
			"slot":  label,
			"error": err.Error(),
		})
		return "", err
	}
	return url, nil
}
