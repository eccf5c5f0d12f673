package beatgrid

import (
	"math"
	"sort"
)

// syncTolerance lets a chord onset detected slightly after a beat still claim that beat.
const syncTolerance = 0.1

// BuildGrid aligns an analysis and lays it out as
// [shift cells][padding cells][regular cells], together with the audio
// mapping the playback resolver reads.
func BuildGrid(a Analysis) *Grid {
	bpm, timeSignature := normalizeTempo(a.BPM, a.TimeSignature)

	first := a.FirstDetectedBeatTime
	if !isFinite(first) || first <= 0 {
		first = 0
		if len(a.Beats) > 0 && isFinite(a.Beats[0].Time) && a.Beats[0].Time > 0 {
			first = a.Beats[0].Time
		}
	}

	g := &Grid{
		Cells:                 []GridCell{},
		Mapping:               []AudioMappingEntry{},
		BPM:                   bpm,
		TimeSignature:         timeSignature,
		FirstDetectedBeatTime: first,
	}
	if len(a.Chords) == 0 {
		return g
	}

	labels := make([]string, len(a.Chords))
	for i, span := range a.Chords {
		labels[i] = span.Chord
	}
	g.Alignment = ComputeAlignment(labels, a.Beats, first, bpm, timeSignature)

	total := g.Alignment.ShiftCount + len(a.Chords)
	if !g.Alignment.ChordAnchored {
		total += g.Alignment.PaddingCount
	}
	cells := make([]GridCell, 0, total)

	for i := 0; i < g.Alignment.ShiftCount; i++ {
		cells = append(cells, GridCell{})
	}

	if !g.Alignment.ChordAnchored && g.Alignment.PaddingCount > 0 {
		step := first / float64(g.Alignment.PaddingCount)
		for i := 0; i < g.Alignment.PaddingCount; i++ {
			cells = append(cells, GridCell{Chord: NoChord, Timestamp: floatPtr(float64(i) * step)})
		}
	}

	beatDuration := 60 / bpm
	prev := math.Inf(-1)
	for i, span := range a.Chords {
		t := beatTime(a.Beats, span.BeatIndex)
		if math.IsNaN(t) {
			if i == 0 {
				t = first
			} else {
				t = prev + beatDuration
			}
		}
		// keep the sequence monotonic even if the detector was not
		if t < prev {
			t = prev
		}
		prev = t
		cells = append(cells, GridCell{Chord: span.Chord, Timestamp: floatPtr(t)})
	}

	for i := range cells {
		cells[i].BeatNumber = (i % timeSignature) + 1
	}
	g.Cells = cells
	g.Mapping = buildMapping(cells, g.RegularStart())
	return g
}

// buildMapping emits one entry per rendered chord label in the regular
// region. A label never maps before regularStart, so a leading N.C. that
// merges visually with the padding still points into the regular cells.
func buildMapping(cells []GridCell, regularStart int) []AudioMappingEntry {
	mapping := make([]AudioMappingEntry, 0)
	runStart := 0
	for i := range cells {
		if i == 0 || cells[i].Chord != cells[i-1].Chord {
			runStart = i
		}
		if i < regularStart {
			continue
		}
		if i != regularStart && i != runStart {
			continue
		}
		visual := runStart
		if visual < regularStart {
			visual = regularStart
		}
		mapping = append(mapping, AudioMappingEntry{
			Chord:       cells[i].Chord,
			Timestamp:   *cells[i].Timestamp,
			VisualIndex: visual,
		})
	}
	return mapping
}

// Timestamp returns the time at which cell i becomes current.
func (g *Grid) Timestamp(i int) (float64, bool) {
	if g == nil || i < 0 || i >= len(g.Cells) || g.Cells[i].Timestamp == nil {
		return 0, false
	}
	return *g.Cells[i].Timestamp, true
}

// DownbeatAgreement returns the fraction of detector downbeats that land on a
// cell numbered 1 after alignment. Downbeats further than half a beat from any
// regular cell are ignored.
func (g *Grid) DownbeatAgreement(downbeats []float64) float64 {
	if g == nil || len(downbeats) == 0 {
		return 0
	}
	start := g.RegularStart()
	if start >= len(g.Cells) {
		return 0
	}
	regular := g.Cells[start:]
	half := g.BeatDuration() / 2

	matched, agreed := 0, 0
	for _, d := range downbeats {
		j := sort.Search(len(regular), func(k int) bool {
			return *regular[k].Timestamp >= d
		})
		nearest := -1
		bestDist := math.Inf(1)
		for _, k := range []int{j - 1, j} {
			if k < 0 || k >= len(regular) {
				continue
			}
			if dist := math.Abs(*regular[k].Timestamp - d); dist < bestDist {
				nearest, bestDist = k, dist
			}
		}
		if nearest < 0 || bestDist > half {
			continue
		}
		matched++
		if regular[nearest].BeatNumber == 1 {
			agreed++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(agreed) / float64(matched)
}

// SynchronizeChords binds every beat to the chord sounding at it. Beats
// before the first chord onset get NoChord.
func SynchronizeChords(events []ChordEvent, beats []BeatEvent) []ChordSpan {
	if len(beats) == 0 {
		return []ChordSpan{}
	}
	sorted := make([]ChordEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	spans := make([]ChordSpan, len(beats))
	current := NoChord
	next := 0
	for i, beat := range beats {
		for next < len(sorted) && sorted[next].Time <= beat.Time+syncTolerance {
			current = sorted[next].Chord
			next++
		}
		spans[i] = ChordSpan{Chord: current, BeatIndex: i}
	}
	return spans
}

func beatTime(beats []BeatEvent, index int) float64 {
	if index < 0 || index >= len(beats) || !isFinite(beats[index].Time) {
		return math.NaN()
	}
	return beats[index].Time
}

func floatPtr(f float64) *float64 {
	return &f
}
