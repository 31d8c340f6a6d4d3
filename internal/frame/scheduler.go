// Package frame batches render requests to the next frame.
package frame

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Interval is the frame period of ClockFrames, about 60 frames a second.
const Interval = 16 * time.Millisecond

// Frames runs callbacks on the next frame.
type Frames interface {
	RequestFrame(fn func())
}

// ClockFrames schedules frames on a clock, one Interval after the request.
type ClockFrames struct {
	clock    clockwork.Clock
	interval time.Duration
}

// NewClockFrames uses the real clock when clock is nil.
func NewClockFrames(clock clockwork.Clock) *ClockFrames {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockFrames{clock: clock, interval: Interval}
}

// RequestFrame runs fn on a timer goroutine after one frame interval.
func (f *ClockFrames) RequestFrame(fn func()) {
	f.clock.AfterFunc(f.interval, fn)
}

// Updater coalesces update requests into one render per frame. The pending
// flag is set by the first request and cleared just before render runs, so
// requests made during render schedule another frame.
type Updater struct {
	frames Frames
	render func()

	mu      sync.Mutex
	pending bool
}

// NewUpdater binds a render callback to a frame source.
func NewUpdater(frames Frames, render func()) *Updater {
	return &Updater{frames: frames, render: render}
}

// RequestUpdate schedules a render unless one is already pending. It
// reports whether a new frame was requested.
func (u *Updater) RequestUpdate() bool {
	u.mu.Lock()
	if u.pending {
		u.mu.Unlock()
		return false
	}
	u.pending = true
	u.mu.Unlock()

	u.frames.RequestFrame(u.run)
	return true
}

// Pending reports whether a render is scheduled.
func (u *Updater) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pending
}

func (u *Updater) run() {
	u.mu.Lock()
	u.pending = false
	u.mu.Unlock()
	u.render()
}

// Immediate runs frames synchronously. It is meant for server-side charts
// that render on demand.
type Immediate struct{}

func (Immediate) RequestFrame(fn func()) { fn() }
