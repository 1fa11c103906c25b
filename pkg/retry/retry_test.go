package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("transient store failure")

func fastOpts() []Option {
	return []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustedReturnsUnwrappedError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(errFlaky)
	}, fastOpts()...)

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err))
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(errFlaky)
	}, fastOpts()...)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errFlaky
	}, fastOpts()...)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_RetryIfOverridesDefault(t *testing.T) {
	attempts := 0
	opts := append(fastOpts(), WithRetryIf(func(err error) bool {
		return errors.Is(err, errFlaky)
	}))

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errFlaky // plain error, retried by the predicate
	}, opts...)

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Retryable(errFlaky)
	}, WithMaxAttempts(5), WithInitialDelay(10*time.Millisecond), WithJitter(0))

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var reported []int
	opts := append(fastOpts(), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		reported = append(reported, attempt)
	}))

	_ = Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errFlaky)
	}, opts...)

	// Called before each retry, never after the final attempt.
	assert.Equal(t, []int{1, 2}, reported)
}

func TestRetryable_NilPassthrough(t *testing.T) {
	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}

func TestCalculateDelay_Backoff(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, time.Second, r.calculateDelay(10))
}
