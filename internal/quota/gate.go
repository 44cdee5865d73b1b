package quota

import (
	"context"
	"math"
	"strconv"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
)

// GateConfig carries the usage gate's tunables.
type GateConfig struct {
	TrialPlanID    string
	ProvisionTrial bool
}

// Gate decides whether a requested generation is permitted. A check is not
// purely read-only: when the subscription's reset date has passed, the same
// call zeroes the counters and advances the date before deciding, so the
// request that trips the reset also benefits from it.
type Gate struct {
	config *GateConfig
	store  *Store
	cache  DecisionCache
	logger logger.Logger
	now    func() time.Time
}

func NewGate(config *GateConfig, store *Store, cache DecisionCache, log logger.Logger) *Gate {
	return &Gate{
		config: config,
		store:  store,
		cache:  cache,
		logger: log.With(map[string]interface{}{"component": "quota.Gate"}),
		now:    time.Now,
	}
}

// WithNow overrides the gate's clock. Tests only.
func (g *Gate) WithNow(now func() time.Time) *Gate {
	g.now = now
	return g
}

// CheckAndAdvise returns the quota decision for one (user, kind) pair.
// Decisions are served from the cache while fresh; a miss reads the
// subscription, applies the monthly reset if due, computes the verdict and
// writes it back to the cache.
func (g *Gate) CheckAndAdvise(ctx context.Context, userID string, kind Kind) (*Decision, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	if decision, ok := g.cache.Get(ctx, userID, kind); ok {
		metrics.QuotaCacheHits.WithLabelValues("hit").Inc()
		return decision, nil
	}
	metrics.QuotaCacheHits.WithLabelValues("miss").Inc()

	sub, err := g.store.GetActiveByUser(ctx, userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeSubscriptionNotFound) && g.config.ProvisionTrial {
			sub, err = g.store.CreateTrial(ctx, userID, g.config.TrialPlanID, g.now().UTC())
		}
		if err != nil {
			return nil, err
		}
	}

	plan, err := g.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	if !now.Before(sub.ResetDate) {
		if err := g.resetUsage(ctx, sub, now); err != nil {
			return nil, err
		}
		sub, err = g.store.GetActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	decision := computeDecision(sub, plan, kind, now)
	g.cache.Set(ctx, userID, kind, decision)

	metrics.QuotaDecisions.WithLabelValues(string(kind), strconv.FormatBool(decision.Allowed)).Inc()
	g.logger.Debug("quota decision", map[string]interface{}{
		"userId":    userID,
		"kind":      string(kind),
		"allowed":   decision.Allowed,
		"used":      decision.Used,
		"limit":     decision.Limit,
		"remaining": decision.Remaining,
	})
	return decision, nil
}

// resetUsage applies the monthly reset. A write conflict means another
// instance reset the same row first; the re-read after this call picks up
// its result, so the conflict is absorbed here.
func (g *Gate) resetUsage(ctx context.Context, sub *Subscription, now time.Time) error {
	err := g.store.ResetUsage(ctx, sub, now)
	if err == nil {
		g.logger.Info("monthly usage reset", map[string]interface{}{
			"userId":       sub.UserID,
			"newResetDate": sub.ResetDate.Format(time.RFC3339),
		})
		return nil
	}
	if apperrors.HasCode(err, apperrors.ErrCodeUsageConflict) {
		g.logger.Debug("usage reset lost race, another writer reset first", map[string]interface{}{
			"userId": sub.UserID,
		})
		return nil
	}
	return err
}

func computeDecision(sub *Subscription, plan *Plan, kind Kind, now time.Time) *Decision {
	limit := plan.Limit(kind)
	used := sub.Used(kind)

	decision := &Decision{
		Limit:     limit,
		Used:      used,
		PlanName:  plan.Name,
		CheckedAt: now,
	}
	if limit <= 0 {
		// A zero-limit plan never allows the kind; avoid dividing by zero.
		decision.Allowed = false
		decision.Remaining = 0
		decision.PercentageUsed = 0
		return decision
	}

	decision.Allowed = used < limit
	decision.Remaining = limit - used
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	pct := int(math.Round(float64(used) * 100 / float64(limit)))
	if pct > 100 {
		pct = 100
	}
	decision.PercentageUsed = pct
	return decision
}
