package ingestor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestBackoffRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastBackoff().Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &StoreError{Op: "commit", Transient: true, Err: errors.New("connection reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffStopsOnPermanentError(t *testing.T) {
	permanent := &StoreError{Op: "upsert movement", Transient: false, Err: errors.New("not null violation")}
	calls := 0
	err := fastBackoff().Retry(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &StoreError{Op: "begin", Transient: true, Err: errors.New("too many connections")}
	calls := 0
	err := fastBackoff().Retry(context.Background(), func() error {
		calls++
		return transient
	})
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := policy.Retry(ctx, func() error {
		calls++
		cancel()
		return &StoreError{Op: "begin", Transient: true, Err: errors.New("down")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelayCapsAtMaxDelay(t *testing.T) {
	policy := BackoffPolicy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}
	assert.Equal(t, 100*time.Millisecond, policy.Delay(0))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(2))
	assert.Equal(t, time.Second, policy.Delay(8))
}
