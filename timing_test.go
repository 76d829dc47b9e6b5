package xtap_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xtap"
)

func TestTiming_CompletesOnce(t *testing.T) {
	tm := xtap.NewTiming(xtap.NewOnCompleted("c", xtap.Stages{}), nil)
	assert.False(t, tm.Done())
	assert.Zero(t, tm.Duration())
	assert.True(t, tm.EndTime().IsZero())

	require.NoError(t, tm.End())
	assert.True(t, tm.Done())
	assert.False(t, tm.EndTime().Before(tm.Start()))
	assert.GreaterOrEqual(t, tm.Duration(), time.Duration(0))

	err := tm.End()
	assert.ErrorIs(t, err, xtap.ErrAlreadyCompleted)
	assert.ErrorIs(t, err, xtap.ErrProtocolViolation)
	assert.ErrorIs(t, tm.Fail(errors.New("late")), xtap.ErrAlreadyCompleted)
	assert.NoError(t, tm.Err())
}

func TestTiming_FailKeepsFirstFailure(t *testing.T) {
	tm := xtap.NewTiming(xtap.NewOnNext("c", xtap.Stages{}, 1), nil)
	boom := errors.New("boom")
	require.NoError(t, tm.Fail(boom))
	assert.ErrorIs(t, tm.Fail(errors.New("other")), xtap.ErrAlreadyCompleted)
	assert.ErrorIs(t, tm.End(), xtap.ErrAlreadyCompleted)
	assert.Same(t, boom, tm.Err())
}

func TestTiming_ConcurrentCompletionHasOneWinner(t *testing.T) {
	tm := xtap.NewTiming(xtap.NewOnCompleted("c", xtap.Stages{}), nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tm.End() == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestTiming_CapturesGoroutine(t *testing.T) {
	here := xtap.NewTiming(xtap.NewOnStart("c", xtap.Stages{}), nil)
	assert.NotZero(t, here.Goroutine())

	ch := make(chan *xtap.Timing)
	go func() { ch <- xtap.NewTiming(xtap.NewOnStart("c", xtap.Stages{}), nil) }()
	there := <-ch
	assert.NotZero(t, there.Goroutine())
	assert.NotEqual(t, here.Goroutine(), there.Goroutine())
}
