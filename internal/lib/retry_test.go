package lib_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name      string
		attempt   int
		initialMs int64
		maxMs     int64
		expected  time.Duration
	}{
		{"First attempt", 0, 1000, 30000, 1 * time.Second},
		{"Second attempt doubles", 1, 1000, 30000, 2 * time.Second},
		{"Third attempt doubles again", 2, 1000, 30000, 4 * time.Second},
		{"Capped at max", 10, 1000, 30000, 30 * time.Second},
		{"Negative attempt treated as zero", -1, 1000, 30000, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backoff := lib.CalculateBackoff(tt.attempt, tt.initialMs, tt.maxMs)
			assert.Equal(t, tt.expected, backoff)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, lib.ShouldRetry(models.ErrorTypeTransient, 0, 3))
	assert.True(t, lib.ShouldRetry(models.ErrorTypeTransient, 2, 3))
	assert.False(t, lib.ShouldRetry(models.ErrorTypeTransient, 3, 3), "Retries exhausted")
	assert.False(t, lib.ShouldRetry(models.ErrorTypeNonTransient, 0, 3), "Non-transient errors never retry")
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status   int
		expected models.ErrorType
	}{
		{500, models.ErrorTypeTransient},
		{502, models.ErrorTypeTransient},
		{503, models.ErrorTypeTransient},
		{408, models.ErrorTypeTransient},
		{429, models.ErrorTypeTransient},
		{400, models.ErrorTypeNonTransient},
		{404, models.ErrorTypeNonTransient},
		{409, models.ErrorTypeNonTransient},
		{422, models.ErrorTypeNonTransient},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, lib.ClassifyHTTPError(tt.status), "status %d", tt.status)
	}
}

func TestExecuteWithRetry_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	err := lib.ExecuteWithRetry(func() error {
		attempts++
		return nil
	}, fastRetryConfig(), func(err error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithRetry_TransientThenSuccess(t *testing.T) {
	attempts := 0
	err := lib.ExecuteWithRetry(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, fastRetryConfig(), lib.IsNetworkError)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_NonRetryableAbortsImmediately(t *testing.T) {
	attempts := 0
	err := lib.ExecuteWithRetry(func() error {
		attempts++
		return errors.New("malformed payload")
	}, fastRetryConfig(), lib.IsNetworkError)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable error")
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithRetry_Exhaustion(t *testing.T) {
	attempts := 0
	err := lib.ExecuteWithRetry(func() error {
		attempts++
		return errors.New("timeout")
	}, fastRetryConfig(), lib.IsNetworkError)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetryContext_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := lib.ExecuteWithRetryContext(ctx, func() error {
		attempts++
		return nil
	}, fastRetryConfig(), func(err error) bool { return true })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestExecuteWithRetryContext_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	config := lib.RetryConfig{MaxAttempts: 5, InitialBackoffMs: 5000, MaxBackoffMs: 10000}
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := lib.ExecuteWithRetryContext(ctx, func() error {
		attempts++
		return errors.New("timeout")
	}, config, lib.IsNetworkError)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "Cancellation during backoff must stop further attempts")
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil error", nil, false},
		{"Connection refused", errors.New("dial tcp 127.0.0.1:9000: connection refused"), true},
		{"Connection reset", errors.New("read: connection reset by peer"), true},
		{"No such host", errors.New("lookup gateway: no such host"), true},
		{"Timeout", errors.New("request timeout"), true},
		{"Context deadline", errors.New("context deadline exceeded"), true},
		{"Unreachable", errors.New("network is unreachable"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"Case insensitive", errors.New("Connection Refused"), true},
		{"Validation error", errors.New("invalid resourceType"), false},
		{"Permission error", errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lib.IsNetworkError(tt.err))
		})
	}
}

// fastRetryConfig keeps retry tests quick
func fastRetryConfig() lib.RetryConfig {
	return lib.RetryConfig{
		MaxAttempts:      3,
		InitialBackoffMs: 1,
		MaxBackoffMs:     5,
	}
}

func TestNewRetryConfigFromModel(t *testing.T) {
	config := lib.NewRetryConfigFromModel(models.RetryConfig{
		MaxAttempts:      7,
		InitialBackoffMs: 250,
		MaxBackoffMs:     8000,
	})

	assert.Equal(t, 7, config.MaxAttempts)
	assert.Equal(t, int64(250), config.InitialBackoffMs)
	assert.Equal(t, int64(8000), config.MaxBackoffMs)
}
