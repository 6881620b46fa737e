package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAfterReplacesPendingRequest(t *testing.T) {
	s := newScheduler(t)
	bot := uuid.New()

	var first, second atomic.Int32
	require.NoError(t, s.RequestAfter(bot, 200*time.Millisecond, func() { first.Add(1) }))
	require.NoError(t, s.RequestAfter(bot, 40*time.Millisecond, func() { second.Add(1) }))
	assert.True(t, s.Pending(bot))

	require.Eventually(t, func() bool { return second.Load() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return !s.Pending(bot) }, waitFor, tick)

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

func TestAfterWithShortDelayRunsImmediately(t *testing.T) {
	s := newScheduler(t)

	var ran atomic.Bool
	require.NoError(t, s.After("now", 0, func() { ran.Store(true) }))
	require.Eventually(t, ran.Load, waitFor, tick)
}

func TestCancel(t *testing.T) {
	s := newScheduler(t)

	var ran atomic.Bool
	require.NoError(t, s.After("later", 100*time.Millisecond, func() { ran.Store(true) }))
	assert.True(t, s.PendingTag("later"))
	assert.True(t, s.Cancel("later"))
	assert.False(t, s.Cancel("later"))
	assert.False(t, s.PendingTag("later"))

	time.Sleep(200 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestEvery(t *testing.T) {
	s := newScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.Every("tick", 20*time.Millisecond, func() error {
		runs.Add(1)
		return nil
	}))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, waitFor, tick)
}
