package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// ==========================
// Fakes
// ==========================

// fakeImageGenerator fails permanently for prompts listed in failPrompts and
// otherwise returns a URL derived from the prompt.
type fakeImageGenerator struct {
	mu          sync.Mutex
	calls       int
	failPrompts []string
}

func (f *fakeImageGenerator) GenerateImage(ctx context.Context, prompt string, referenceImageURLs []string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for _, fragment := range f.failPrompts {
		if strings.Contains(prompt, fragment) {
			return "", apperrors.NewUpstreamRejectedError("image-generation", "refused")
		}
	}
	return "https://cdn.example.com/" + slug(prompt) + ".png", nil
}

type fakeSpeechSynthesizer struct {
	mu        sync.Mutex
	calls     int
	failTexts []string
	voices    []string
}

func (f *fakeSpeechSynthesizer) SynthesizeSpeech(ctx context.Context, text, voiceID string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.voices = append(f.voices, voiceID)
	f.mu.Unlock()
	for _, fragment := range f.failTexts {
		if strings.Contains(text, fragment) {
			return "", apperrors.NewUpstreamRejectedError("speech-synthesis", "refused")
		}
	}
	return "https://cdn.example.com/" + slug(text) + ".mp3", nil
}

func slug(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, s)
	// Keep the tail: image prompts share a long style preamble and differ at
	// the end.
	if len(s) > 40 {
		s = s[len(s)-40:]
	}
	return s
}

func testScript(sceneCount int) *Script {
	scenes := make([]ScriptScene, sceneCount)
	for i := range scenes {
		scenes[i] = ScriptScene{
			VisualPrompt: fmt.Sprintf("visual %d", i+1),
			NarratorText: fmt.Sprintf("narration %d", i+1),
		}
	}
	return &Script{
		Title:       "Test",
		Synopsis:    "Synopsis",
		CoverPrompt: "cover art",
		Scenes:      scenes,
	}
}

func newMediaGeneratorForTest(t *testing.T, images *fakeImageGenerator, speech *fakeSpeechSynthesizer) *MediaGenerator {
	return NewMediaGenerator(images, speech, fastPolicy, 4, 4, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestMediaGenerator_Generate_AllSucceed(t *testing.T) {
	images := &fakeImageGenerator{}
	speech := &fakeSpeechSynthesizer{}
	gen := newMediaGeneratorForTest(t, images, speech)

	results, err := gen.Generate(context.Background(), testScript(5), quota.KindVideo, QualityStandard, nil, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, results.CoverImageURL)
	require.Len(t, results.ImageURLs, 5)
	for i, url := range results.ImageURLs {
		assert.NotEmpty(t, url, "image slot %d", i)
		assert.Contains(t, url, fmt.Sprintf("visual-%d", i+1))
	}
	for i, url := range results.NarrationURLs {
		assert.NotEmpty(t, url, "narration slot %d", i)
	}
	assert.Equal(t, 6, images.calls) // cover + 5 scenes
	assert.Equal(t, 5, speech.calls)
}

func TestMediaGenerator_Generate_FailedImagesLeaveSlotsEmpty(t *testing.T) {
	images := &fakeImageGenerator{failPrompts: []string{"visual 2", "visual 4"}}
	speech := &fakeSpeechSynthesizer{}
	gen := newMediaGeneratorForTest(t, images, speech)

	results, err := gen.Generate(context.Background(), testScript(5), quota.KindVideo, QualityStandard, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, results.ImageURLs[1])
	assert.Empty(t, results.ImageURLs[3])
	assert.NotEmpty(t, results.ImageURLs[0])
	assert.NotEmpty(t, results.ImageURLs[2])
	assert.NotEmpty(t, results.ImageURLs[4])
	// Audio is unaffected by image failures.
	for _, url := range results.NarrationURLs {
		assert.NotEmpty(t, url)
	}
}

func TestMediaGenerator_Generate_FailedAudioIsDropped(t *testing.T) {
	images := &fakeImageGenerator{}
	speech := &fakeSpeechSynthesizer{failTexts: []string{"narration 3"}}
	gen := newMediaGeneratorForTest(t, images, speech)

	results, err := gen.Generate(context.Background(), testScript(5), quota.KindVideo, QualityStandard, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, results.NarrationURLs[2])
	assert.NotEmpty(t, results.NarrationURLs[0])
	assert.NotEmpty(t, results.ImageURLs[2])
}

func TestMediaGenerator_Generate_ComicSkipsAudio(t *testing.T) {
	images := &fakeImageGenerator{}
	speech := &fakeSpeechSynthesizer{}
	gen := newMediaGeneratorForTest(t, images, speech)

	results, err := gen.Generate(context.Background(), testScript(5), quota.KindComic, QualityStandard, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, speech.calls)
	assert.Equal(t, 6, images.calls)
	for _, url := range results.NarrationURLs {
		assert.Empty(t, url)
	}
}

func TestMediaGenerator_Generate_DialogueUsesCharacterVoice(t *testing.T) {
	images := &fakeImageGenerator{}
	speech := &fakeSpeechSynthesizer{}
	gen := newMediaGeneratorForTest(t, images, speech)

	script := testScript(1)
	script.Scenes[0].Dialogue = "We hold the light."
	script.Scenes[0].DialogueCharacter = "Mara"

	results, err := gen.Generate(context.Background(), script, quota.KindVideo, QualityStandard, nil,
		map[string]string{"Mara": "voice-mara"})
	require.NoError(t, err)

	assert.NotEmpty(t, results.DialogueURLs[0])
	assert.Contains(t, speech.voices, "voice-mara")
}

func TestMediaGenerator_Generate_StylePreambleInPrompts(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	images := &promptRecordingImageGenerator{record: func(prompt string) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
	}}
	gen := NewMediaGenerator(images, &fakeSpeechSynthesizer{}, fastPolicy, 1, 1, logger.NewTestLogger(t))

	_, err := gen.Generate(context.Background(), testScript(2), quota.KindComic, QualityCinematic, nil, nil)
	require.NoError(t, err)

	for _, prompt := range prompts {
		assert.Contains(t, prompt, "cinematic still")
	}
}

type promptRecordingImageGenerator struct {
	record func(prompt string)
}

func (p *promptRecordingImageGenerator) GenerateImage(ctx context.Context, prompt string, referenceImageURLs []string) (string, error) {
	p.record(prompt)
	return "https://cdn.example.com/x.png", nil
}
