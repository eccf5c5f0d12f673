package analysis

import (
	"math"
	"strings"

	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
)

// Key identifies a stored analysis
type Key struct {
	VideoID    string `json:"video_id"`
	BeatModel  string `json:"beat_model"`
	ChordModel string `json:"chord_model"`
}

// Valid reports whether the key has a video id.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.VideoID) != ""
}

// Defaults substitute missing tempo metadata
type Defaults struct {
	BPM           float64
	TimeSignature int
}

// ToAnalysis coerces a backend result into grid input. Missing tempo falls
// back to d, and then to the grid defaults. Raw chords are synchronized to
// beats when the backend did not do it.
func ToAnalysis(r *Result, d Defaults) beatgrid.Analysis {
	if r == nil {
		return beatgrid.Analysis{BPM: d.BPM, TimeSignature: d.TimeSignature}
	}

	// invalid beats keep their slot with a NaN time; the grid extrapolates them
	beats := make([]beatgrid.BeatEvent, len(r.Beats))
	firstValid := math.NaN()
	for i, b := range r.Beats {
		if !b.Valid() {
			beats[i] = beatgrid.BeatEvent{Time: math.NaN(), BeatNumber: b.BeatNum}
			continue
		}
		beats[i] = beatgrid.BeatEvent{Time: b.Time, BeatNumber: b.BeatNum}
		if math.IsNaN(firstValid) {
			firstValid = b.Time
		}
	}

	a := beatgrid.Analysis{
		Beats:         beats,
		BPM:           d.BPM,
		TimeSignature: d.TimeSignature,
	}

	if det := r.BeatDetection; det != nil {
		if det.BPM > 0 && !math.IsInf(det.BPM, 0) {
			a.BPM = det.BPM
		}
		if det.TimeSignature > 0 {
			a.TimeSignature = det.TimeSignature
		}
		if det.BeatTimeRangeStart != nil && *det.BeatTimeRangeStart > 0 {
			a.FirstDetectedBeatTime = *det.BeatTimeRangeStart
		}
	}
	if a.FirstDetectedBeatTime <= 0 && !math.IsNaN(firstValid) {
		a.FirstDetectedBeatTime = firstValid
	}

	if len(r.SynchronizedChords) > 0 {
		a.Chords = make([]beatgrid.ChordSpan, 0, len(r.SynchronizedChords))
		for _, sc := range r.SynchronizedChords {
			a.Chords = append(a.Chords, beatgrid.ChordSpan{Chord: sc.Chord, BeatIndex: sc.BeatIndex})
			if sc.BeatNum > 0 && sc.BeatIndex >= 0 && sc.BeatIndex < len(a.Beats) && a.Beats[sc.BeatIndex].BeatNumber == 0 {
				a.Beats[sc.BeatIndex].BeatNumber = sc.BeatNum
			}
		}
		return a
	}

	events := make([]beatgrid.ChordEvent, 0, len(r.Chords))
	for _, c := range r.Chords {
		events = append(events, beatgrid.ChordEvent{Chord: c.Chord, Time: c.Time})
	}
	a.Chords = beatgrid.SynchronizeChords(events, beats)
	return a
}

// BuildGrid converts and aligns a backend result in one step.
func BuildGrid(r *Result, d Defaults) *beatgrid.Grid {
	return beatgrid.BuildGrid(ToAnalysis(r, d))
}
