package examtimer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_CountsDownToExpiry(t *testing.T) {
	var fired int32
	tm := NewSeconds(3, func() { atomic.AddInt32(&fired, 1) })

	assert.Equal(t, Running, tm.Tick())
	assert.Equal(t, Running, tm.Tick())
	assert.Equal(t, 1, tm.Remaining())
	assert.Equal(t, Expired, tm.Tick())
	assert.Equal(t, 0, tm.Remaining())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
}

func TestTimer_DuplicateTicksFireOnce(t *testing.T) {
	var fired int32
	tm := NewSeconds(1, func() { atomic.AddInt32(&fired, 1) })

	tm.Tick()
	tm.Tick() // delayed duplicate tick after expiry
	tm.Expire()

	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
	assert.Equal(t, Expired, tm.State())
}

func TestTimer_ConcurrentTicksFireOnce(t *testing.T) {
	var fired int32
	tm := NewSeconds(50, func() { atomic.AddInt32(&fired, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.Tick()
		}()
	}
	wg.Wait()

	assert.Equal(t, Expired, tm.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
}

func TestTimer_PauseHaltsCountdown(t *testing.T) {
	tm := New(1, nil)

	assert.Equal(t, Paused, tm.Toggle())
	tm.Tick()
	tm.Tick()
	assert.Equal(t, 60, tm.Remaining())

	assert.Equal(t, Running, tm.Toggle())
	tm.Tick()
	assert.Equal(t, 59, tm.Remaining())

	tm.Pause()
	tm.Pause()
	assert.Equal(t, Paused, tm.State())
	tm.Resume()
	assert.Equal(t, Running, tm.State())
}

func TestTimer_ExpiredIsTerminal(t *testing.T) {
	tm := NewSeconds(1, nil)
	tm.Tick()

	assert.Equal(t, Expired, tm.Toggle())
	tm.Resume()
	assert.Equal(t, Expired, tm.State())
}

func TestTimer_ProgressAndLevel(t *testing.T) {
	tm := NewSeconds(100, nil)
	tests := []struct {
		ticks    int
		progress float64
		level    Level
		format   string
	}{
		{ticks: 0, progress: 100, level: LevelNominal, format: "01:40"},
		{ticks: 49, progress: 51, level: LevelNominal, format: "00:51"},
		{ticks: 1, progress: 50, level: LevelWarning, format: "00:50"},
		{ticks: 24, progress: 26, level: LevelWarning, format: "00:26"},
		{ticks: 1, progress: 25, level: LevelCritical, format: "00:25"},
		{ticks: 25, progress: 0, level: LevelCritical, format: "00:00"},
	}
	for _, tc := range tests {
		for i := 0; i < tc.ticks; i++ {
			tm.Tick()
		}
		assert.InDelta(t, tc.progress, tm.Progress(), 0.0001)
		assert.Equal(t, tc.level, tm.Level())
		assert.Equal(t, tc.format, tm.Format())
	}
}

func TestTimer_FormatLongExam(t *testing.T) {
	tm := New(120, nil)
	assert.Equal(t, "120:00", tm.Format())
}

func TestTimer_RunStopsOnExpiry(t *testing.T) {
	var fired int32
	tm := NewSeconds(2, func() { atomic.AddInt32(&fired, 1) })
	ticks := make(chan time.Time, 5)
	for i := 0; i < 5; i++ {
		ticks <- time.Now()
	}

	err := tm.Run(context.Background(), ticks)
	require.NoError(t, err)
	assert.Equal(t, Expired, tm.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
	assert.Len(t, ticks, 3, "run must stop consuming after expiry")
}

func TestTimer_RunCancelled(t *testing.T) {
	tm := NewSeconds(10, func() { t.Fatal("must not expire") })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tm.Run(ctx, make(chan time.Time))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Running, tm.State())
}
