// Package pipeline turns one generation request into a finished multi-asset
// project: a structured script from the text provider, a cover plus one
// image per scene, and optional narration/dialogue audio, assembled in scene
// order and persisted as a single project record.
package pipeline

import (
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// QualityTier controls scene density and the visual style preamble.
type QualityTier string

const (
	QualityFast      QualityTier = "fast"
	QualityStandard  QualityTier = "standard"
	QualityPremium   QualityTier = "premium"
	QualityCinematic QualityTier = "cinematic"
)

// ParseQualityTier validates a client-supplied tier string.
func ParseQualityTier(s string) (QualityTier, error) {
	switch QualityTier(s) {
	case QualityFast, QualityStandard, QualityPremium, QualityCinematic:
		return QualityTier(s), nil
	default:
		return "", apperrors.NewValidationError("qualityTier", "must be one of fast, standard, premium, cinematic")
	}
}

// ScenesPerMinute is the tier's scene-density multiplier.
func (t QualityTier) ScenesPerMinute() float64 {
	switch t {
	case QualityFast:
		return 1.5
	case QualityStandard:
		return 2.0
	case QualityPremium:
		return 2.5
	case QualityCinematic:
		return 3.0
	default:
		return 2.0
	}
}

// StylePreamble is prepended to every image prompt of the tier.
func (t QualityTier) StylePreamble() string {
	switch t {
	case QualityFast:
		return "Clean flat illustration, bold outlines, simple shading"
	case QualityStandard:
		return "Detailed digital illustration, balanced composition, rich color palette"
	case QualityPremium:
		return "Highly detailed cinematic illustration, dramatic lighting, painterly textures"
	case QualityCinematic:
		return "Ultra-detailed cinematic still, volumetric lighting, film-grade color grading, 35mm depth of field"
	default:
		return "Detailed digital illustration"
	}
}

// CharacterRef describes a recurring character the providers should keep
// visually and vocally consistent.
type CharacterRef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	VoiceID     string `json:"voiceId,omitempty"`
}

// Request is the ephemeral input of one pipeline run. It is never persisted.
type Request struct {
	Kind            quota.Kind     `json:"kind"`
	Title           string         `json:"title"`
	Story           string         `json:"story"`
	DurationMinutes int            `json:"durationMinutes,omitempty"`
	QualityTier     string         `json:"qualityTier,omitempty"`
	TargetAudience  string         `json:"targetAudience,omitempty"`
	Language        string         `json:"language,omitempty"`
	Characters      []CharacterRef `json:"characters,omitempty"`
}

// Scene is one assembled unit of the finished project. Media fields stay
// empty when their generation failed; the scene itself is always kept.
type Scene struct {
	SceneNumber       int    `json:"sceneNumber"`
	ImageURL          string `json:"imageUrl"`
	NarratorText      string `json:"narratorText,omitempty"`
	Dialogue          string `json:"dialogue,omitempty"`
	SoundEffect       string `json:"soundEffect,omitempty"`
	CameraAngle       string `json:"cameraAngle,omitempty"`
	Transition        string `json:"transition,omitempty"`
	EmotionalBeat     string `json:"emotionalBeat,omitempty"`
	NarrationAudioURL string `json:"narrationAudioUrl,omitempty"`
	DialogueAudioURL  string `json:"dialogueAudioUrl,omitempty"`
}

// Project is the persisted output of a successful pipeline run. Once its
// status is "completed" nothing mutates it again.
type Project struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Kind          quota.Kind `json:"kind"`
	Title         string     `json:"title"`
	Synopsis      string     `json:"synopsis"`
	CoverImageURL string     `json:"coverImageUrl"`
	Status        string     `json:"status"` // in_progress | completed | failed
	Scenes        []Scene    `json:"scenes"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

const (
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusFailed     = "failed"
)
