package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/providers"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// scriptSchema constrains the text provider's output. Every scene carries a
// visual prompt for the image stage; narration and dialogue are optional and
// feed the audio stage when present.
const scriptSchema = `{
  "type": "object",
  "required": ["title", "synopsis", "coverPrompt", "scenes"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "synopsis": {"type": "string"},
    "coverPrompt": {"type": "string", "minLength": 1},
    "scenes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["visualPrompt"],
        "properties": {
          "visualPrompt": {"type": "string", "minLength": 1},
          "narratorText": {"type": "string"},
          "dialogue": {"type": "string"},
          "dialogueCharacter": {"type": "string"},
          "soundEffect": {"type": "string"},
          "cameraAngle": {"type": "string"},
          "transition": {"type": "string"},
          "emotionalBeat": {"type": "string"}
        }
      }
    }
  }
}`

// ScriptScene is one unit of the provider's script document.
type ScriptScene struct {
	VisualPrompt      string `json:"visualPrompt"`
	NarratorText      string `json:"narratorText,omitempty"`
	Dialogue          string `json:"dialogue,omitempty"`
	DialogueCharacter string `json:"dialogueCharacter,omitempty"`
	SoundEffect       string `json:"soundEffect,omitempty"`
	CameraAngle       string `json:"cameraAngle,omitempty"`
	Transition        string `json:"transition,omitempty"`
	EmotionalBeat     string `json:"emotionalBeat,omitempty"`
}

// Script is the validated document the media stages consume.
type Script struct {
	Title       string        `json:"title"`
	Synopsis    string        `json:"synopsis"`
	CoverPrompt string        `json:"coverPrompt"`
	Scenes      []ScriptScene `json:"scenes"`
}

// Scriptwriter asks the text provider for a complete script and validates it
// before the rest of the pipeline spends money on media.
type Scriptwriter struct {
	llm    providers.TextGenerator
	logger logger.Logger
}

func NewScriptwriter(llm providers.TextGenerator, log logger.Logger) *Scriptwriter {
	return &Scriptwriter{llm: llm, logger: log}
}

// Generate produces a script with exactly sceneCount scenes when the
// provider cooperates. An over-long script is trimmed to the budget; a short
// one is kept as-is with a warning, since the provider already told the
// whole story it was given.
func (w *Scriptwriter) Generate(ctx context.Context, req *Request, sceneCount int) (*Script, error) {
	prompt := buildScriptPrompt(req, sceneCount)

	raw, err := w.llm.GenerateText(ctx, prompt, json.RawMessage(scriptSchema))
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(scriptSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("text-generation", "script is not valid JSON: "+err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			details = append(details, issue.String())
		}
		return nil, apperrors.NewUpstreamUnavailableError("text-generation", "script failed schema validation: "+strings.Join(details, "; "))
	}

	var script Script
	if err := json.Unmarshal(raw, &script); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("text-generation", "decode script: "+err.Error())
	}

	if len(script.Scenes) > sceneCount {
		w.logger.Warn("script exceeded scene budget, trimming", map[string]interface{}{
			"requested": sceneCount,
			"returned":  len(script.Scenes),
		})
		script.Scenes = script.Scenes[:sceneCount]
	} else if len(script.Scenes) < sceneCount {
		w.logger.Warn("script came back short", map[string]interface{}{
			"requested": sceneCount,
			"returned":  len(script.Scenes),
		})
	}

	if script.Title == "" {
		script.Title = req.Title
	}

	return &script, nil
}

func buildScriptPrompt(req *Request, sceneCount int) string {
	var parts []string

	unit := "scenes"
	if req.Kind == quota.KindComic {
		unit = "comic panels"
		parts = append(parts, fmt.Sprintf("You are a comic book writer. Break the following story into exactly %d %s.", sceneCount, unit))
	} else {
		parts = append(parts, fmt.Sprintf("You are a screenwriter for short-form animated video. Break the following story into exactly %d %s.", sceneCount, unit))
		parts = append(parts, fmt.Sprintf("The finished video runs about %d minute(s); pace the scenes accordingly.", req.DurationMinutes))
	}

	parts = append(parts, "Title: "+req.Title)
	parts = append(parts, "Story: "+req.Story)

	if req.TargetAudience != "" {
		parts = append(parts, "Target audience: "+req.TargetAudience)
	}
	if req.Language != "" {
		parts = append(parts, "Write all text in "+req.Language+".")
	}
	for _, character := range req.Characters {
		desc := character.Name
		if character.Description != "" {
			desc += " - " + character.Description
		}
		parts = append(parts, "Recurring character: "+desc)
	}

	parts = append(parts, "For every scene, write a self-contained visual prompt that an image model can render without seeing the other scenes.")
	parts = append(parts, "Also write a cover prompt that captures the whole story in one image.")

	return strings.Join(parts, "\n")
}
