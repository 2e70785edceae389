package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First retry"},
		{2, 200 * time.Millisecond, "Second retry"},
		{4, 800 * time.Millisecond, "Fourth retry"},
		{5, 1 * time.Second, "Capped at max"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, backoff.NextDelay(test.attempt))
		})
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Wrap(errs.ErrorTypeNetwork, "flaky", errors.New("reset"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		attempts++
		return errs.FromStatus(404, "no such page")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		attempts++
		return errs.FromStatus(503, "unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.True(t, errs.Is(err, errs.ErrorTypeServerError))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(ctx context.Context) error {
			attempts++
			return errors.New("keep trying")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first try fails")
		}
		return "<li>page 2</li>", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "<li>page 2</li>", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.MissingElement("a.like")))
	assert.True(t, DefaultRetryIf(errs.FromStatus(429, "slow down")))
	assert.True(t, DefaultRetryIf(errors.New("unclassified")))
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
