package playback

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval polls the playback clock at 20Hz.
const DefaultPollInterval = 50 * time.Millisecond

// Clock is a playback position source, e.g. an audio element or video player.
type Clock interface {
	CurrentTime() float64
}

// Follower drives a Tracker from a Clock on a fixed interval and reports
// highlight changes.
type Follower struct {
	tracker  *Tracker
	clock    Clock
	interval time.Duration
}

// NewFollower creates a follower. A non-positive interval uses DefaultPollInterval.
func NewFollower(tracker *Tracker, clock Clock, interval time.Duration) *Follower {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Follower{
		tracker:  tracker,
		clock:    clock,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. onChange is called from the polling
// goroutine with the new index whenever the highlighted cell changes,
// including changes to -1. Run returns ctx.Err().
func (f *Follower) Run(ctx context.Context, onChange func(index int)) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	last := f.step(-1, onChange)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last = f.step(last, onChange)
		}
	}
}

func (f *Follower) step(last int, onChange func(int)) int {
	index := f.tracker.Tick(f.clock.CurrentTime())
	if index != last && onChange != nil {
		onChange(index)
	}
	return index
}

// SimulatedClock is a Clock that advances with wall time while playing.
type SimulatedClock struct {
	mu       sync.Mutex
	position float64
	started  time.Time
	playing  bool
	rate     float64
	now      func() time.Time
}

// NewSimulatedClock creates a paused clock at position 0. rate scales
// playback speed; a non-positive rate means 1.
func NewSimulatedClock(rate float64) *SimulatedClock {
	if rate <= 0 {
		rate = 1
	}
	return &SimulatedClock{rate: rate, now: time.Now}
}

// CurrentTime implements Clock.
func (c *SimulatedClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *SimulatedClock) positionLocked() float64 {
	if !c.playing {
		return c.position
	}
	return c.position + c.now().Sub(c.started).Seconds()*c.rate
}

// Play starts or resumes the clock.
func (c *SimulatedClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.started = c.now()
	c.playing = true
}

// Pause freezes the clock at its current position.
func (c *SimulatedClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.positionLocked()
	c.playing = false
}

// Seek moves the clock to seconds, keeping its play state.
func (c *SimulatedClock) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	c.position = seconds
	c.started = c.now()
}
