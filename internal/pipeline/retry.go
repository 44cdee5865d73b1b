package pipeline

import (
	"context"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
)

// RetryPolicy governs every external provider call the pipeline makes.
// Timeout applies per attempt, not across the whole loop; BaseBackoff grows
// linearly with the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
	BaseBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = time.Second
	}
	return p
}

// callWithRetry runs fn under the policy: each attempt gets its own timeout,
// terminal errors surface immediately, transient ones are retried with a
// linear backoff that still honors the parent context.
func callWithRetry[T any](ctx context.Context, log logger.Logger, label string, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * policy.BaseBackoff
			log.Warn("retrying external call", map[string]interface{}{
				"call":    label,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		result, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		if !apperrors.IsRetryable(err) {
			return zero, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}
