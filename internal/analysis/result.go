package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Result is the payload returned by the analysis backend for one track
type Result struct {
	Chords             []ChordEntry        `json:"chords"`
	Beats              Beats               `json:"beats"`
	Downbeats          []float64           `json:"downbeats,omitempty"`
	BeatDetection      *BeatDetection      `json:"beatDetectionResult,omitempty"`
	SynchronizedChords []SynchronizedChord `json:"synchronizedChords,omitempty"`
	BeatModel          string              `json:"beatModel,omitempty"`
	ChordModel         string              `json:"chordModel,omitempty"`
}

// ChordEntry is a raw timed chord
type ChordEntry struct {
	Chord string  `json:"chord"`
	Time  float64 `json:"time"`
}

// BeatDetection holds tempo metadata
type BeatDetection struct {
	BPM                float64  `json:"bpm"`
	TimeSignature      int      `json:"time_signature"`
	BeatTimeRangeStart *float64 `json:"beat_time_range_start,omitempty"`
}

// SynchronizedChord binds a chord to a beat index
type SynchronizedChord struct {
	Chord     string `json:"chord"`
	BeatIndex int    `json:"beatIndex"`
	BeatNum   int    `json:"beatNum,omitempty"`
}

// Beat is one beat time, optionally with its position in the measure
type Beat struct {
	Time    float64 `json:"time"`
	BeatNum int     `json:"beatNum,omitempty"`
}

// Beats accepts either a plain array of seconds or an array of beat objects.
// Positions are significant: synchronized chords refer to beats by index, so
// a null entry is kept as a beat with a NaN time.
type Beats []Beat

// Valid reports whether the beat carries a usable time.
func (b Beat) Valid() bool {
	return !math.IsNaN(b.Time) && !math.IsInf(b.Time, 0) && b.Time >= 0
}

// MarshalJSON writes invalid beats back as null so the array keeps its indexes.
func (b Beats) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	items := make([]*Beat, len(b))
	for i := range b {
		if b[i].Valid() {
			items[i] = &b[i]
		}
	}
	return json.Marshal(items)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Beats) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("beats must be an array: %w", err)
	}

	beats := make(Beats, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if bytes.Equal(item, []byte("null")) {
			beats = append(beats, Beat{Time: math.NaN()})
			continue
		}
		if len(item) > 0 && item[0] == '{' {
			var beat Beat
			if err := json.Unmarshal(item, &beat); err != nil {
				return fmt.Errorf("beat %d: %w", i, err)
			}
			beats = append(beats, beat)
			continue
		}
		var t float64
		if err := json.Unmarshal(item, &t); err != nil {
			return fmt.Errorf("beat %d: %w", i, err)
		}
		beats = append(beats, Beat{Time: t})
	}
	*b = beats
	return nil
}
