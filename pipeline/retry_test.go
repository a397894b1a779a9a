package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetry_EventualSuccess(t *testing.T) {
	attempts := 0
	v, err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("temporary error")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return expectedErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, expectedErr, "should wrap the last error")
	assert.Equal(t, 4, attempts, "should attempt MaxRetries+1 times")
}

func TestRetry_ZeroRetries(t *testing.T) {
	attempts := 0
	err := fastPolicy(0).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
}

func TestRetry_PermanentErrorStops(t *testing.T) {
	attempts := 0
	permanent := core.Permanent(errors.New("400 bad request"))
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
}

func TestRetry_CustomClassifier(t *testing.T) {
	retryMe := errors.New("retry me")
	policy := fastPolicy(3)
	policy.Retryable = func(err error) bool { return errors.Is(err, retryMe) }

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return retryMe
		}
		return errors.New("give up")
	})
	assert.EqualError(t, err, "give up")
	assert.Equal(t, 2, attempts)
}

func TestRetry_OnRetryDelays(t *testing.T) {
	var delays []time.Duration
	var attempts []int
	policy := fastPolicy(3)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	}

	_ = policy.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, delays)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, policy.Backoff(0))
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 4*time.Second, policy.Backoff(2))
	assert.Equal(t, policy.Backoff(maxBackoffShift), policy.Backoff(100), "exponent is capped")
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := fastPolicy(10).Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}

func TestRetry_ContextTimeoutDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}
	start := time.Now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute, "backoff sleep honors the context")
}

func TestRetry_ContextErrorFromOperationNotRetried(t *testing.T) {
	attempts := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestRetry_InvalidMaxRetries(t *testing.T) {
	err := fastPolicy(-1).Do(context.Background(), func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidMaxRetries)
}
