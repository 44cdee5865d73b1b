// Package quota implements the usage gate and recorder that every
// generation must pass through: monthly limits per plan, cached decisions,
// reset-on-read and post-generation usage accounting.
package quota

import (
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
)

// Kind is the closed set of generation kinds a plan meters separately.
type Kind string

const (
	KindVideo Kind = "video"
	KindComic Kind = "comic"
)

// ParseKind validates a client-supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVideo:
		return KindVideo, nil
	case KindComic:
		return KindComic, nil
	default:
		return "", apperrors.NewValidationError("kind", "must be \"video\" or \"comic\"")
	}
}

func (k Kind) String() string { return string(k) }

// Subscription is the per-user usage record, one row per user.
type Subscription struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	PlanID               string    `json:"planId"`
	Status               string    `json:"status"` // active | expired
	VideoGenerationsUsed int       `json:"videoGenerationsUsed"`
	ComicGenerationsUsed int       `json:"comicGenerationsUsed"`
	ResetDate            time.Time `json:"resetDate"`
	RenewalDate          time.Time `json:"renewalDate"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Used returns the consumed counter for the given kind.
func (s *Subscription) Used(kind Kind) int {
	switch kind {
	case KindVideo:
		return s.VideoGenerationsUsed
	case KindComic:
		return s.ComicGenerationsUsed
	default:
		return 0
	}
}

// Plan is read-only reference data resolved by planId.
type Plan struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	VideoGenerationsPerMonth int    `json:"videoGenerationsPerMonth"`
	ComicGenerationsPerMonth int    `json:"comicGenerationsPerMonth"`
}

// Limit returns the monthly allowance for the given kind.
func (p *Plan) Limit(kind Kind) int {
	switch kind {
	case KindVideo:
		return p.VideoGenerationsPerMonth
	case KindComic:
		return p.ComicGenerationsPerMonth
	default:
		return 0
	}
}

// Decision is the usage gate's verdict for one (user, kind) pair. It is the
// exact payload cached and returned to the client-side guard.
type Decision struct {
	Allowed        bool      `json:"can_use"`
	Remaining      int       `json:"remaining"`
	Limit          int       `json:"limit"`
	Used           int       `json:"used"`
	PlanName       string    `json:"plan_name"`
	PercentageUsed int       `json:"percentage_used"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Receipt acknowledges a recorded usage increment.
type Receipt struct {
	RecordedAt time.Time `json:"recordedAt"`
}
