package quota

import (
	"context"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
)

// subscriptionStore is the slice of Store the recorder needs. Declared here
// so tests can drive the conflict path with a fake.
type subscriptionStore interface {
	GetActiveByUser(ctx context.Context, userID string) (*Subscription, error)
	IncrementUsage(ctx context.Context, sub *Subscription, kind Kind, now time.Time) error
	MarkExpired(ctx context.Context, sub *Subscription, now time.Time) error
}

// RecorderConfig carries the conflict-retry policy.
type RecorderConfig struct {
	ConflictRetries int
	ConflictBackoff time.Duration // per attempt, linear
}

// Recorder durably increments a usage counter after a successful generation.
// It never checks the plan limit — enforcement happened in the gate before
// any paid work started; this is pure bookkeeping.
//
// The retry is blind: a conflicted write is resubmitted unchanged, without
// re-reading the current count. Two increments racing past the retry window
// can therefore lose an update; callers must treat counts as best-effort
// under heavy concurrency.
type Recorder struct {
	config *RecorderConfig
	store  subscriptionStore
	cache  DecisionCache
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(config *RecorderConfig, store subscriptionStore, cache DecisionCache, log logger.Logger) *Recorder {
	return &Recorder{
		config: config,
		store:  store,
		cache:  cache,
		logger: log.With(map[string]interface{}{"component": "quota.Recorder"}),
		now:    time.Now,
	}
}

// WithNow overrides the recorder's clock. Tests only.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record increments the counter matching kind by exactly one.
func (r *Recorder) Record(ctx context.Context, userID string, kind Kind) (*Receipt, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	sub, err := r.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if now.After(sub.RenewalDate) {
		if err := r.store.MarkExpired(ctx, sub, now); err != nil {
			return nil, err
		}
		return nil, apperrors.NewSubscriptionExpiredError(userID, sub.RenewalDate)
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.ConflictRetries; attempt++ {
		if attempt > 0 {
			metrics.UsageConflictRetries.Inc()
			backoff := time.Duration(attempt) * r.config.ConflictBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, apperrors.NewInternalError("usage record cancelled: " + ctx.Err().Error())
			}
		}

		lastErr = r.store.IncrementUsage(ctx, sub, kind, r.now().UTC())
		if lastErr == nil {
			r.cache.Invalidate(ctx, userID, kind)
			r.logger.Info("usage recorded", map[string]interface{}{
				"userId": userID,
				"kind":   string(kind),
				"used":   sub.Used(kind) + 1,
			})
			return &Receipt{RecordedAt: r.now().UTC()}, nil
		}
		if !apperrors.HasCode(lastErr, apperrors.ErrCodeUsageConflict) {
			return nil, lastErr
		}

		r.logger.Warn("usage increment conflict", map[string]interface{}{
			"userId":  userID,
			"kind":    string(kind),
			"attempt": attempt + 1,
		})
	}

	return nil, lastErr
}
