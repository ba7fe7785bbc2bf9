package query

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_ScheduleRuns(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var ran atomic.Int32
	require.True(t, p.Schedule("upload-1", time.Millisecond, func() { ran.Add(1) }))
	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, p.Active("upload-1"))
}

func TestPoller_RescheduleReplaces(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var first, second atomic.Int32
	p.Schedule("k", 20*time.Millisecond, func() { first.Add(1) })
	p.Schedule("k", time.Millisecond, func() { second.Add(1) })
	assert.Equal(t, 1, p.Len())

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestPoller_Cancel(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var ran atomic.Int32
	p.Schedule("k", 10*time.Millisecond, func() { ran.Add(1) })
	assert.True(t, p.Active("k"))
	p.Cancel("k")
	assert.False(t, p.Active("k"))

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, ran.Load())
}

func TestPoller_SelfRescheduleRepeats(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var ran atomic.Int32
	var tick func()
	tick = func() {
		if ran.Add(1) < 3 {
			p.Schedule("k", time.Millisecond, tick)
		}
	}
	p.Schedule("k", time.Millisecond, tick)
	require.Eventually(t, func() bool { return ran.Load() == 3 }, time.Second, time.Millisecond)
}

func TestPoller_StopRefusesNewTasks(t *testing.T) {
	p := NewPoller()
	p.Schedule("k", time.Hour, func() {})
	p.Stop()
	assert.Zero(t, p.Len())
	assert.False(t, p.Schedule("k", time.Millisecond, func() {}))
}
