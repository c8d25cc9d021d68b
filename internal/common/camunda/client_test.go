package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/errors"
)

func newRetryClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := newRetryClient(3)
	attempts := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	c := newRetryClient(2)
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("context deadline exceeded")
	}, "topology")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUpstreamUnavailable))
}

func TestExecuteWithRetry_PermanentErrorNotRetried(t *testing.T) {
	c := newRetryClient(3)
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("rpc error: code = PermissionDenied desc = permission denied")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnauthenticated))
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	c := newRetryClient(5)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		cancel()
		return nil, stderrors.New("connection reset by peer")
	}, "topology")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRequestCancelled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapZeebeError(t *testing.T) {
	c := newRetryClient(0)

	tests := []struct {
		msg  string
		want errors.ErrorCode
	}{
		{"connection refused", errors.ErrCodeUpstreamUnavailable},
		{"code = Unavailable", errors.ErrCodeUpstreamUnavailable},
		{"deadline exceeded", errors.ErrCodeUpstreamUnavailable},
		{"unauthorized", errors.ErrCodeUnauthenticated},
		{"job not found", errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		err := c.mapZeebeError(stderrors.New(tt.msg), "op", 0)
		assert.True(t, errors.HasCode(err, tt.want), "%s: %v", tt.msg, err)
	}
}
