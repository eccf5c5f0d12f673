package playback

import (
	"sync"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
)

// Tracker owns the resolver state for one playback of a grid: the last
// highlighted cell and the last user seek. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	grid    *beatgrid.Grid
	current int
	prev    int
	seek    *UserSeek
	now     func() time.Time
}

// NewTracker creates a tracker with nothing highlighted.
func NewTracker(g *beatgrid.Grid) *Tracker {
	return &Tracker{
		grid:    g,
		current: -1,
		prev:    -1,
		now:     time.Now,
	}
}

// Grid returns the grid being tracked.
func (t *Tracker) Grid() *beatgrid.Grid {
	return t.grid
}

// Position is the highlighted cell and whether a user seek is still
// clamping playback, read together.
type Position struct {
	Index   int
	Seeking bool
}

// Tick resolves the highlighted cell for the playback clock's current time.
func (t *Tracker) Tick(currentTime float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tick(currentTime)
}

// Advance ticks and returns the resulting position without releasing the
// lock in between, so a concurrent seek cannot split the two.
func (t *Tracker) Advance(currentTime float64) Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick(currentTime)
	return t.position()
}

func (t *Tracker) tick(currentTime float64) int {
	wallNow := t.now()
	if t.seek != nil && wallNow.Sub(t.seek.WallClockAtSeek) >= SeekClampWindow {
		t.seek = nil
	}

	index := ResolveCurrentCell(t.grid, currentTime, t.prev, t.seek, wallNow)
	t.current = index
	if index >= 0 {
		t.prev = index
	}
	return index
}

// SeekToIndex records a user jump to a cell and returns the playback time the
// player should move to. It reports false for cells that cannot be highlighted.
func (t *Tracker) SeekToIndex(index int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if suppress(t.grid, index) < 0 {
		return 0, false
	}
	seekTime, ok := t.grid.Timestamp(index)
	if !ok {
		return 0, false
	}

	t.seek = &UserSeek{
		VisualIndex:     index,
		SeekTime:        seekTime,
		WallClockAtSeek: t.now(),
	}
	t.current = index
	t.prev = index
	return seekTime, true
}

// SeekToTime records a user jump to a playback time and returns the cell it
// lands on, or -1 if none.
func (t *Tracker) SeekToTime(seekTime float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	// resolve from scratch; the previous index belongs to the old position
	index := ResolveCurrentCell(t.grid, seekTime, -1, nil, t.now())
	if index < 0 {
		t.seek = nil
		t.current = -1
		t.prev = -1
		return -1
	}

	t.seek = &UserSeek{
		VisualIndex:     index,
		SeekTime:        seekTime,
		WallClockAtSeek: t.now(),
	}
	t.current = index
	t.prev = index
	return index
}

// Position returns the last resolved index and seek state.
func (t *Tracker) Position() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position()
}

func (t *Tracker) position() Position {
	return Position{Index: t.current, Seeking: t.seek != nil}
}

// Current returns the last resolved index.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// LastSeek returns a copy of the active seek record, if any.
func (t *Tracker) LastSeek() (UserSeek, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seek == nil {
		return UserSeek{}, false
	}
	return *t.seek, true
}

// Reset clears all state, e.g. when playback stops.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = -1
	t.prev = -1
	t.seek = nil
}
