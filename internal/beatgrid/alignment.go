package beatgrid

import (
	"math"
	"strings"
)

// IsNoChord reports whether a chord label marks silence rather than harmony.
func IsNoChord(chord string) bool {
	switch strings.TrimSpace(chord) {
	case "", NoChord, "N", "NC", "N/C", "X":
		return true
	default:
		return false
	}
}

// ComputeAlignment places a chord sequence on the visual grid. It picks how
// many padding beats precede the first detection and how far the beat
// numbering is rotated so that chord changes land on downbeats.
//
// Invalid tempo metadata is replaced with defaults. Empty chord and beat
// sequences yield the identity alignment.
func ComputeAlignment(chords []string, beats []BeatEvent, firstDetectedBeatTime, bpm float64, timeSignature int) AlignmentResult {
	bpm, timeSignature = normalizeTempo(bpm, timeSignature)
	if len(chords) == 0 && len(beats) == 0 {
		return AlignmentResult{}
	}

	if !isFinite(firstDetectedBeatTime) || firstDetectedBeatTime <= 0 {
		firstDetectedBeatTime = 0
		if len(beats) > 0 && isFinite(beats[0].Time) && beats[0].Time > 0 {
			firstDetectedBeatTime = beats[0].Time
		}
	}

	padding, anchored := PaddingCount(chords, firstDetectedBeatTime, bpm, timeSignature)

	// Anchored padding lives inside the chord sequence, so nothing synthetic precedes it.
	leadingCells := padding
	if anchored {
		leadingCells = 0
	}
	shift, scores := ShiftCount(chords, leadingCells, timeSignature)

	return AlignmentResult{
		PaddingCount:      padding,
		ShiftCount:        shift,
		TotalPaddingCount: padding + shift,
		ChordAnchored:     anchored,
		ShiftScores:       scores,
	}
}

// PaddingCount returns the number of placeholder beats that precede the
// first real chord. A leading run of no-chord markers is trusted as is;
// otherwise the count is derived from the first detected beat time.
func PaddingCount(chords []string, firstDetectedBeatTime, bpm float64, timeSignature int) (int, bool) {
	bpm, timeSignature = normalizeTempo(bpm, timeSignature)

	if run := leadingNoChordRun(chords); run > 0 {
		if n := boundPadding(run, timeSignature); n > 0 {
			return n, true
		}
		return 0, false
	}

	if !isFinite(firstDetectedBeatTime) || firstDetectedBeatTime <= minPaddingGap {
		return 0, false
	}

	beatDuration := 60 / bpm
	raw := int(math.Floor(firstDetectedBeatTime / beatDuration))
	if raw == 0 && firstDetectedBeatTime > pickupGapRatio*beatDuration {
		raw = 1
	}
	return boundPadding(raw, timeSignature), false
}

// ShiftCount returns the phase rotation in [0, timeSignature) that puts the
// most chord changes on beat 1. leadingCells is the number of synthetic
// cells preceding chords[0]. Ties keep the lowest shift.
//
// Without any real chord the rotation is derived from position alone so
// that the first cell after the leading cells is a downbeat.
func ShiftCount(chords []string, leadingCells, timeSignature int) (int, []int) {
	if timeSignature <= 0 {
		timeSignature = DefaultTimeSignature
	}
	if leadingCells < 0 {
		leadingCells = 0
	}

	if !hasRealChord(chords) {
		beat := (leadingCells % timeSignature) + 1
		if beat == 1 {
			return 0, nil
		}
		return timeSignature - beat + 1, nil
	}

	scores := make([]int, timeSignature)
	best := 0
	for shift := 0; shift < timeSignature; shift++ {
		scores[shift] = downbeatChanges(chords, leadingCells+shift, timeSignature)
		if scores[shift] > scores[best] {
			best = shift
		}
	}
	return best, scores
}

// downbeatChanges counts chords that start on a visual downbeat when the
// first chord sits at grid position offset.
func downbeatChanges(chords []string, offset, timeSignature int) int {
	count := 0
	for i, chord := range chords {
		if IsNoChord(chord) {
			continue
		}
		if i > 0 && chords[i-1] == chord {
			continue
		}
		if (offset+i)%timeSignature == 0 {
			count++
		}
	}
	return count
}

func leadingNoChordRun(chords []string) int {
	for i, chord := range chords {
		if !IsNoChord(chord) {
			return i
		}
	}
	// all silence: there is no first real chord to anchor to
	return 0
}

func hasRealChord(chords []string) bool {
	for _, chord := range chords {
		if !IsNoChord(chord) {
			return true
		}
	}
	return false
}

func boundPadding(n, timeSignature int) int {
	if n <= 0 || n >= maxPaddingMeasures*timeSignature {
		return 0
	}
	return n
}

func normalizeTempo(bpm float64, timeSignature int) (float64, int) {
	if !isFinite(bpm) || bpm <= 0 {
		bpm = DefaultBPM
	}
	if timeSignature <= 0 {
		timeSignature = DefaultTimeSignature
	}
	return bpm, timeSignature
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
