package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeats_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Beats
		expectError bool
	}{
		{
			name:     "plain seconds",
			input:    `[0.5, 1.0, 1.5]`,
			expected: Beats{{Time: 0.5}, {Time: 1.0}, {Time: 1.5}},
		},
		{
			name:     "beat objects",
			input:    `[{"time": 0.5, "beatNum": 1}, {"time": 1.0}]`,
			expected: Beats{{Time: 0.5, BeatNum: 1}, {Time: 1.0}},
		},
		{
			name:     "null",
			input:    `null`,
			expected: nil,
		},
		{
			name:        "not an array",
			input:       `{"time": 1}`,
			expectError: true,
		},
		{
			name:        "string element",
			input:       `["one"]`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var beats Beats
			err := json.Unmarshal([]byte(tt.input), &beats)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, beats)
		})
	}
}

func TestBeats_NullKeepsPosition(t *testing.T) {
	var beats Beats
	require.NoError(t, json.Unmarshal([]byte(`[0.5, null, {"time": 1.0, "beatNum": 3}]`), &beats))

	require.Len(t, beats, 3)
	assert.Equal(t, 0.5, beats[0].Time)
	assert.True(t, math.IsNaN(beats[1].Time))
	assert.False(t, beats[1].Valid())
	assert.Equal(t, Beat{Time: 1.0, BeatNum: 3}, beats[2])

	// invalid beats are written back as null so indexes survive storage
	out, err := json.Marshal(beats)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"time":0.5},null,{"time":1,"beatNum":3}]`, string(out))

	var again Beats
	require.NoError(t, json.Unmarshal(out, &again))
	require.Len(t, again, 3)
	assert.True(t, math.IsNaN(again[1].Time))
}

func TestBuildGrid_NullBeatKeepsChordTimes(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(`{
		"beats": [null, 0.5, 1.0, 1.5],
		"synchronizedChords": [
			{"chord": "C", "beatIndex": 1, "beatNum": 2},
			{"chord": "G", "beatIndex": 2},
			{"chord": "D", "beatIndex": 3}
		]
	}`), &result))

	a := ToAnalysis(&result, Defaults{})
	require.Len(t, a.Beats, 4)
	assert.Equal(t, 0.5, a.FirstDetectedBeatTime)
	assert.Equal(t, 2, a.Beats[1].BeatNumber)
	assert.Equal(t, 0, a.Beats[2].BeatNumber)

	g := BuildGrid(&result, Defaults{})
	require.Len(t, g.Mapping, 3)
	expected := []struct {
		chord string
		time  float64
	}{{"C", 0.5}, {"G", 1.0}, {"D", 1.5}}
	for i, e := range expected {
		assert.Equal(t, e.chord, g.Mapping[i].Chord)
		assert.InDelta(t, e.time, g.Mapping[i].Timestamp, 1e-9, "%s bound to beat %d", e.chord, i+1)
	}
}

const backendPayload = `{
	"chords": [{"chord": "C", "time": 0.6}, {"chord": "G", "time": 1.6}],
	"beats": [0.6, 1.1, 1.6, 2.1],
	"downbeats": [0.6, 2.6],
	"beatDetectionResult": {"bpm": 120, "time_signature": 4, "beat_time_range_start": 0.6},
	"synchronizedChords": [
		{"chord": "C", "beatIndex": 0, "beatNum": 1},
		{"chord": "C", "beatIndex": 1, "beatNum": 2},
		{"chord": "G", "beatIndex": 2, "beatNum": 3},
		{"chord": "G", "beatIndex": 3, "beatNum": 4}
	]
}`

func TestToAnalysis(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(backendPayload), &result))

	a := ToAnalysis(&result, Defaults{BPM: 90, TimeSignature: 3})

	assert.Equal(t, 120.0, a.BPM)
	assert.Equal(t, 4, a.TimeSignature)
	assert.Equal(t, 0.6, a.FirstDetectedBeatTime)
	require.Len(t, a.Beats, 4)
	assert.Equal(t, 3, a.Beats[2].BeatNumber)
	assert.Equal(t, []beatgrid.ChordSpan{
		{Chord: "C", BeatIndex: 0},
		{Chord: "C", BeatIndex: 1},
		{Chord: "G", BeatIndex: 2},
		{Chord: "G", BeatIndex: 3},
	}, a.Chords)

	g := BuildGrid(&result, Defaults{})
	assert.Equal(t, 1, g.Alignment.PaddingCount)
	assert.Equal(t, 1, g.Alignment.ShiftCount)
}

func TestToAnalysis_Coercion(t *testing.T) {
	t.Run("nil result uses defaults", func(t *testing.T) {
		a := ToAnalysis(nil, Defaults{BPM: 100, TimeSignature: 3})
		assert.Equal(t, 100.0, a.BPM)
		assert.Equal(t, 3, a.TimeSignature)
		assert.Empty(t, a.Chords)
	})

	t.Run("missing tempo uses defaults", func(t *testing.T) {
		a := ToAnalysis(&Result{
			BeatDetection: &BeatDetection{BPM: -5, TimeSignature: 0},
			Beats:         Beats{{Time: 0.4}, {Time: 0.9}},
		}, Defaults{BPM: 100, TimeSignature: 3})
		assert.Equal(t, 100.0, a.BPM)
		assert.Equal(t, 3, a.TimeSignature)
		assert.Equal(t, 0.4, a.FirstDetectedBeatTime)
	})

	t.Run("negative beats keep their slot", func(t *testing.T) {
		a := ToAnalysis(&Result{Beats: Beats{{Time: -1}, {Time: 0.5}}}, Defaults{})
		require.Len(t, a.Beats, 2)
		assert.True(t, math.IsNaN(a.Beats[0].Time))
		assert.Equal(t, 0.5, a.Beats[1].Time)
		assert.Equal(t, 0.5, a.FirstDetectedBeatTime)
	})

	t.Run("raw chords are synchronized", func(t *testing.T) {
		a := ToAnalysis(&Result{
			Chords: []ChordEntry{{Chord: "Am", Time: 0.5}, {Chord: "F", Time: 1.5}},
			Beats:  Beats{{Time: 0}, {Time: 0.5}, {Time: 1.0}, {Time: 1.5}},
		}, Defaults{})
		assert.Equal(t, []beatgrid.ChordSpan{
			{Chord: beatgrid.NoChord, BeatIndex: 0},
			{Chord: "Am", BeatIndex: 1},
			{Chord: "Am", BeatIndex: 2},
			{Chord: "F", BeatIndex: 3},
		}, a.Chords)
	})
}

func TestKey_Valid(t *testing.T) {
	assert.True(t, Key{VideoID: "dQw4w9WgXcQ"}.Valid())
	assert.False(t, Key{VideoID: "  ", BeatModel: "beat-transformer"}.Valid())
}
