package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"first try", []error{nil}, 1, nil},
		{"recovers", []error{WrapRetryable(errBoom), WrapRetryable(errBoom), nil}, 3, nil},
		{"permanent", []error{errBoom}, 1, errBoom},
		{"exhausted", []error{WrapRetryable(errBoom), WrapRetryable(errBoom), WrapRetryable(errBoom), nil}, 3, ErrRetryable},
		{"rate limited", []error{ErrRateLimited, nil}, 2, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			v, err := Retry(context.Background(), fastRetry(), func() (int, error) {
				err := tc.errs[calls]
				calls++
				return calls, err
			})
			assert.Equal(t, tc.wantCalls, calls)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCalls, v)
		})
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Minute}

	calls := 0
	_, err := Retry(ctx, cfg, func() (int, error) {
		calls++
		cancel()
		return 0, WrapRetryable(errBoom)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	for attempt := range 6 {
		d := backoff(attempt, 100*time.Millisecond, 400*time.Millisecond)
		ceiling := min(100*time.Millisecond<<attempt, 400*time.Millisecond)
		assert.GreaterOrEqual(t, d, ceiling/2)
		assert.Less(t, d, ceiling)
	}
	assert.Equal(t, time.Duration(0), backoff(0, 0, 0))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRetryable(WrapRetryable(errBoom)))
	assert.True(t, IsRetryable(ErrRateLimited))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errBoom))
	assert.False(t, IsRetryable(nil))
	assert.NoError(t, WrapRetryable(nil))
}
