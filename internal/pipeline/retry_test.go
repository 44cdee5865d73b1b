package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
)

var fastPolicy = RetryPolicy{
	MaxAttempts: 3,
	Timeout:     time.Second,
	BaseBackoff: time.Millisecond,
}

func TestCallWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := callWithRetry(context.Background(), logger.NewTestLogger(t), "test", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	result, err := callWithRetry(context.Background(), logger.NewTestLogger(t), "test", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apperrors.NewUpstreamUnavailableError("image-generation", "503")
		}
		return "https://cdn.example.com/img.png", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.png", result)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_TerminalErrorStopsImmediately(t *testing.T) {
	calls := 0
	terminal := apperrors.NewUpstreamRejectedError("image-generation", "prompt rejected")

	_, err := callWithRetry(context.Background(), logger.NewTestLogger(t), "test", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		return "", terminal
	})

	require.Error(t, err)
	assert.Equal(t, terminal, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ExhaustionSurfacesLastError(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), logger.NewTestLogger(t), "test", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		return "", apperrors.NewUpstreamUnavailableError("speech-synthesis", "timeout")
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := callWithRetry(ctx, logger.NewTestLogger(t), "test", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", apperrors.NewUpstreamUnavailableError("image-generation", "503")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_AttemptGetsOwnDeadline(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 1, Timeout: 10 * time.Millisecond, BaseBackoff: time.Millisecond}

	_, err := callWithRetry(context.Background(), logger.NewTestLogger(t), "test", policy, func(ctx context.Context) (string, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 5*time.Millisecond)
		return "done", nil
	})
	require.NoError(t, err)
}
