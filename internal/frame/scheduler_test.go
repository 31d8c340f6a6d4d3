package frame

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualFrames queues callbacks until flush.
type manualFrames struct {
	queued []func()
}

func (m *manualFrames) RequestFrame(fn func()) { m.queued = append(m.queued, fn) }

func (m *manualFrames) flush() {
	q := m.queued
	m.queued = nil
	for _, fn := range q {
		fn()
	}
}

func TestUpdater_CoalescesRequests(t *testing.T) {
	frames := &manualFrames{}
	renders := 0
	u := NewUpdater(frames, func() { renders++ })

	assert.True(t, u.RequestUpdate())
	assert.False(t, u.RequestUpdate())
	assert.False(t, u.RequestUpdate())
	assert.True(t, u.Pending())
	require.Len(t, frames.queued, 1)

	frames.flush()
	assert.Equal(t, 1, renders)
	assert.False(t, u.Pending())

	assert.True(t, u.RequestUpdate())
	frames.flush()
	assert.Equal(t, 2, renders)
}

func TestUpdater_RequestDuringRenderSchedulesAgain(t *testing.T) {
	frames := &manualFrames{}
	renders := 0
	var u *Updater
	u = NewUpdater(frames, func() {
		renders++
		if renders == 1 {
			u.RequestUpdate()
		}
	})

	u.RequestUpdate()
	frames.flush()
	require.Len(t, frames.queued, 1)
	frames.flush()
	assert.Equal(t, 2, renders)
}

func TestUpdater_ImmediateFrames(t *testing.T) {
	renders := 0
	u := NewUpdater(Immediate{}, func() { renders++ })
	u.RequestUpdate()
	u.RequestUpdate()
	assert.Equal(t, 2, renders)
}

func TestClockFrames_RendersOncePerFrame(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var renders atomic.Int32
	u := NewUpdater(NewClockFrames(clock), func() { renders.Add(1) })

	for i := 0; i < 5; i++ {
		u.RequestUpdate()
	}
	clock.Advance(Interval)

	require.Eventually(t, func() bool { return renders.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !u.Pending() }, time.Second, time.Millisecond)

	u.RequestUpdate()
	clock.Advance(Interval)
	require.Eventually(t, func() bool { return renders.Load() == 2 }, time.Second, time.Millisecond)
}
