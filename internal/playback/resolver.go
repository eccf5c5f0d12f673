package playback

import (
	"math"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
)

const (
	// SeekForceWindow is how long a user seek pins the highlight to its target.
	SeekForceWindow = 200 * time.Millisecond
	// SeekClampWindow is how long the highlight may not fall behind a seek target.
	SeekClampWindow = 4000 * time.Millisecond
)

// UserSeek records the most recent manual jump to a grid cell
type UserSeek struct {
	VisualIndex     int       `json:"visual_index"`
	SeekTime        float64   `json:"seek_time"`
	WallClockAtSeek time.Time `json:"wall_clock_at_seek"`
}

// ResolveCurrentCell returns the grid index to highlight at playback time now,
// or -1 when nothing should be highlighted. prevIndex is the last index
// returned (-1 if unknown). wallNow is compared with the seek's wall clock to
// decay the seek override.
func ResolveCurrentCell(g *beatgrid.Grid, now float64, prevIndex int, seek *UserSeek, wallNow time.Time) int {
	if g.Len() == 0 {
		return -1
	}

	if seek != nil {
		elapsed := wallNow.Sub(seek.WallClockAtSeek)
		if elapsed >= 0 && elapsed < SeekForceWindow {
			return suppress(g, clampIndex(g, seek.VisualIndex))
		}
		if elapsed >= 0 && elapsed < SeekClampWindow {
			index := resolveNatural(g, now, prevIndex)
			if index < seek.VisualIndex {
				index = seek.VisualIndex
			}
			return suppress(g, clampIndex(g, index))
		}
	}

	index := resolveNatural(g, now, prevIndex)
	if index < 0 {
		return -1
	}
	return suppress(g, clampIndex(g, index))
}

func resolveNatural(g *beatgrid.Grid, now float64, prevIndex int) int {
	if math.IsNaN(now) {
		return -1
	}
	if now <= g.FirstDetectedBeatTime {
		return resolvePre(g, now)
	}
	if len(g.Mapping) > 0 {
		return resolveFromMapping(g, now, prevIndex)
	}
	return resolveFromCells(g, now, prevIndex)
}

// resolvePre handles playback before the first detected beat.
func resolvePre(g *beatgrid.Grid, now float64) int {
	shift := g.Alignment.ShiftCount

	if g.Alignment.PaddingCount > 0 {
		first := shift
		last := shift + g.Alignment.PaddingCount
		if last > g.Len() {
			last = g.Len()
		}

		closest := -1
		closestDist := math.Inf(1)
		for i := first; i < last; i++ {
			t, ok := g.Timestamp(i)
			if !ok {
				continue
			}
			next, hasNext := nextTimestamp(g, i)
			if !hasNext {
				next = g.FirstDetectedBeatTime
			}
			if now >= t && now < next {
				return i
			}
			if dist := math.Abs(now - t); dist < closestDist {
				closest, closestDist = i, dist
			}
		}
		return closest
	}

	// no padding: estimate a virtual beat from elapsed time
	beat := int(math.Floor(now / g.BeatDuration()))
	if beat < 0 {
		beat = 0
	}
	return clampIndex(g, beat+shift)
}

func resolveFromMapping(g *beatgrid.Grid, now float64, prevIndex int) int {
	mapping := g.Mapping

	// range match
	for i, entry := range mapping {
		end := mappingEnd(g, i)
		if now >= entry.Timestamp && now < end {
			return entry.VisualIndex
		}
	}

	// forward progression from the previous index
	if current, ok := g.Timestamp(prevIndex); ok {
		for _, entry := range mapping {
			if entry.VisualIndex >= prevIndex && entry.Timestamp >= current {
				return entry.VisualIndex
			}
		}
	}

	// closest timestamp
	best := -1
	bestDist := math.Inf(1)
	for _, entry := range mapping {
		if dist := math.Abs(now - entry.Timestamp); dist < bestDist {
			best, bestDist = entry.VisualIndex, dist
		}
	}
	return best
}

// mappingEnd is the exclusive end of entry i's interval. The last entry runs
// to one beat past the final timestamped cell.
func mappingEnd(g *beatgrid.Grid, i int) float64 {
	if i+1 < len(g.Mapping) {
		return g.Mapping[i+1].Timestamp
	}
	end := g.Mapping[i].Timestamp
	if t, ok := g.Timestamp(g.Len() - 1); ok && t > end {
		end = t
	}
	return end + g.BeatDuration()
}

// resolveFromCells runs the same three strategies directly on cell timestamps.
func resolveFromCells(g *beatgrid.Grid, now float64, prevIndex int) int {
	start := g.Alignment.ShiftCount

	for i := start; i < g.Len(); i++ {
		t, ok := g.Timestamp(i)
		if !ok {
			continue
		}
		end, hasNext := nextTimestamp(g, i)
		if !hasNext {
			end = t + g.BeatDuration()
		}
		if now >= t && now < end {
			return i
		}
	}

	if current, ok := g.Timestamp(prevIndex); ok {
		for i := prevIndex; i < g.Len(); i++ {
			if t, ok := g.Timestamp(i); ok && t >= current {
				return i
			}
		}
	}

	best := -1
	bestDist := math.Inf(1)
	for i := start; i < g.Len(); i++ {
		t, ok := g.Timestamp(i)
		if !ok {
			continue
		}
		if dist := math.Abs(now - t); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

func nextTimestamp(g *beatgrid.Grid, i int) (float64, bool) {
	for j := i + 1; j < g.Len(); j++ {
		if t, ok := g.Timestamp(j); ok {
			return t, true
		}
	}
	return 0, false
}

func clampIndex(g *beatgrid.Grid, index int) int {
	if index < 0 {
		return -1
	}
	if index >= g.Len() {
		return g.Len() - 1
	}
	return index
}

// suppress hides shift placeholders and empty cells. N.C. stays visible.
func suppress(g *beatgrid.Grid, index int) int {
	if index < 0 || index >= g.Len() {
		return -1
	}
	if index < g.Alignment.ShiftCount || g.Cells[index].Chord == "" {
		return -1
	}
	return index
}
