package pipeline

import (
	"math"
	"strings"
)

// PlanConfig bounds the number of scenes a single run may produce.
type PlanConfig struct {
	MinScenes int
	MaxScenes int
}

// sceneCountForVideo derives the scene budget from the requested runtime and
// the tier's density, rounded half away from zero and clamped to the plan
// bounds.
func sceneCountForVideo(durationMinutes int, tier QualityTier, cfg PlanConfig) int {
	raw := math.Round(float64(durationMinutes) * tier.ScenesPerMinute())
	return clampScenes(int(raw), cfg)
}

// sceneCountForComic derives the panel budget from story length: roughly one
// panel per fifty words, clamped to the same bounds as video.
func sceneCountForComic(story string, cfg PlanConfig) int {
	words := len(strings.Fields(story))
	raw := math.Round(float64(words) / 50.0)
	return clampScenes(int(raw), cfg)
}

func clampScenes(n int, cfg PlanConfig) int {
	if n < cfg.MinScenes {
		return cfg.MinScenes
	}
	if n > cfg.MaxScenes {
		return cfg.MaxScenes
	}
	return n
}
