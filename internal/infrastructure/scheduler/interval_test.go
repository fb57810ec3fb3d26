package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIntervalSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	s := NewIntervalScheduler(10*time.Millisecond, loc)

	var runs atomic.Int32
	zones := make(chan *time.Location, 1)
	require.NoError(t, s.Start(context.Background(), func(at time.Time) {
		if runs.Add(1) == 1 {
			zones <- at.Location()
		}
	}))

	assert.Equal(t, loc, <-zones)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestIntervalSchedulerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour, nil)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.Start(ctx, func(time.Time) { ran <- struct{}{} }))
	<-ran
	cancel()
	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalSchedulerRejectsZeroInterval(t *testing.T) {
	err := NewIntervalScheduler(0, nil).Start(context.Background(), func(time.Time) {})
	assert.Error(t, err)
}

func TestIntervalSchedulerStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewIntervalScheduler(time.Second, nil).Stop(context.Background()))
}
