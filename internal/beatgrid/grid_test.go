package beatgrid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spansFor(chords ...string) []ChordSpan {
	spans := make([]ChordSpan, len(chords))
	for i, chord := range chords {
		spans[i] = ChordSpan{Chord: chord, BeatIndex: i}
	}
	return spans
}

func TestBuildGrid_ShiftOnly(t *testing.T) {
	g := BuildGrid(Analysis{
		Chords:        spansFor("Am", "Am", "Am", "F", "F", "F", "F", "C"),
		Beats:         beatsFrom(0, 0.5, 8),
		BPM:           120,
		TimeSignature: 4,
	})

	require.Len(t, g.Cells, 9)
	assert.Equal(t, 1, g.Alignment.ShiftCount)
	assert.Equal(t, 0, g.Alignment.PaddingCount)

	assert.True(t, g.Cells[0].IsShift())
	assert.Nil(t, g.Cells[0].Timestamp)
	assert.Equal(t, "F", g.Cells[4].Chord)
	assert.Equal(t, 1, g.Cells[4].BeatNumber)
	assert.Equal(t, "C", g.Cells[8].Chord)
	assert.Equal(t, 1, g.Cells[8].BeatNumber)

	assert.Equal(t, []AudioMappingEntry{
		{Chord: "Am", Timestamp: 0, VisualIndex: 1},
		{Chord: "F", Timestamp: 1.5, VisualIndex: 4},
		{Chord: "C", Timestamp: 3.5, VisualIndex: 8},
	}, g.Mapping)
}

func TestBuildGrid_TimingPadding(t *testing.T) {
	g := BuildGrid(Analysis{
		Chords:                spansFor("C", "C", "G", "G"),
		Beats:                 beatsFrom(0.6, 0.5, 4),
		BPM:                   120,
		TimeSignature:         4,
		FirstDetectedBeatTime: 0.6,
	})

	require.Len(t, g.Cells, 6)
	assert.Equal(t, 2, g.RegularStart())

	assert.True(t, g.Cells[0].IsShift())
	assert.Equal(t, NoChord, g.Cells[1].Chord)
	ts, ok := g.Timestamp(1)
	require.True(t, ok)
	assert.Equal(t, 0.0, ts)

	ts, ok = g.Timestamp(2)
	require.True(t, ok)
	assert.InDelta(t, 0.6, ts, 1e-9)

	assert.Equal(t, 1, g.Cells[4].BeatNumber)
	require.Len(t, g.Mapping, 2)
	assert.Equal(t, 2, g.Mapping[0].VisualIndex)
	assert.Equal(t, 4, g.Mapping[1].VisualIndex)
	assert.InDelta(t, 1.6, g.Mapping[1].Timestamp, 1e-9)
}

func TestBuildGrid_PaddingTimestampsEvenlySpaced(t *testing.T) {
	g := BuildGrid(Analysis{
		Chords:                spansFor("C", "F", "G", "C"),
		Beats:                 beatsFrom(1.5, 0.5, 4),
		BPM:                   120,
		TimeSignature:         4,
		FirstDetectedBeatTime: 1.5,
	})

	require.Equal(t, 3, g.Alignment.PaddingCount)
	shift := g.Alignment.ShiftCount
	for i := 0; i < 3; i++ {
		ts, ok := g.Timestamp(shift + i)
		require.True(t, ok)
		assert.InDelta(t, float64(i)*0.5, ts, 1e-9)
		assert.Equal(t, NoChord, g.Cells[shift+i].Chord)
	}
}

func TestBuildGrid_ChordAnchoredPadding(t *testing.T) {
	g := BuildGrid(Analysis{
		Chords:        spansFor("N.C.", "N.C.", "C", "C", "G", "G", "G", "G"),
		Beats:         beatsFrom(0.2, 0.5, 8),
		BPM:           120,
		TimeSignature: 4,
	})

	assert.True(t, g.Alignment.ChordAnchored)
	assert.Equal(t, 2, g.Alignment.PaddingCount)
	assert.Equal(t, 0, g.Alignment.ShiftCount)
	require.Len(t, g.Cells, 8)
	assert.Equal(t, 0, g.RegularStart())

	assert.Equal(t, []AudioMappingEntry{
		{Chord: "N.C.", Timestamp: 0.2, VisualIndex: 0},
		{Chord: "C", Timestamp: 1.2, VisualIndex: 2},
		{Chord: "G", Timestamp: 2.2, VisualIndex: 4},
	}, g.Mapping)
}

func TestBuildGrid_DegradedInput(t *testing.T) {
	t.Run("no chords", func(t *testing.T) {
		g := BuildGrid(Analysis{Beats: beatsFrom(0.5, 0.5, 4)})
		assert.Empty(t, g.Cells)
		assert.Empty(t, g.Mapping)
		assert.Equal(t, AlignmentResult{}, g.Alignment)
		assert.Equal(t, DefaultBPM, g.BPM)
		assert.Equal(t, DefaultTimeSignature, g.TimeSignature)
	})

	t.Run("beat index out of range extrapolates", func(t *testing.T) {
		g := BuildGrid(Analysis{
			Chords: []ChordSpan{{Chord: "C", BeatIndex: 0}, {Chord: "G", BeatIndex: 1}, {Chord: "D", BeatIndex: 9}},
			Beats:  beatsFrom(0, 0.5, 2),
			BPM:    120,
		})
		last := g.Len() - 1
		ts, ok := g.Timestamp(last)
		require.True(t, ok)
		assert.InDelta(t, 1.0, ts, 1e-9)
	})

	t.Run("out of order beats are made monotonic", func(t *testing.T) {
		g := BuildGrid(Analysis{
			Chords: spansFor("C", "G", "D"),
			Beats:  []BeatEvent{{Time: 0}, {Time: 1.0}, {Time: 0.7}},
			BPM:    120,
		})
		for i := 1; i < len(g.Mapping); i++ {
			assert.LessOrEqual(t, g.Mapping[i-1].Timestamp, g.Mapping[i].Timestamp)
		}
	})
}

func TestBuildGrid_MappingIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocabulary := []string{"C", "G", "Am", "F", "N.C.", "E7"}

	for i := 0; i < 300; i++ {
		n := 1 + rng.Intn(48)
		chords := make([]string, n)
		for j := range chords {
			if j > 0 && rng.Intn(2) == 0 {
				chords[j] = chords[j-1]
				continue
			}
			chords[j] = vocabulary[rng.Intn(len(vocabulary))]
		}
		bpm := 60 + rng.Float64()*120
		first := rng.Float64() * 6
		g := BuildGrid(Analysis{
			Chords:                spansFor(chords...),
			Beats:                 beatsFrom(first, 60/bpm, n),
			BPM:                   bpm,
			TimeSignature:         3 + rng.Intn(3),
			FirstDetectedBeatTime: first,
		})

		for a := 0; a < len(g.Mapping); a++ {
			for b := a + 1; b < len(g.Mapping); b++ {
				if g.Mapping[a].Timestamp <= g.Mapping[b].Timestamp {
					require.LessOrEqual(t, g.Mapping[a].VisualIndex, g.Mapping[b].VisualIndex)
				}
			}
			cell := g.Cells[g.Mapping[a].VisualIndex]
			require.NotEmpty(t, cell.Chord)
			require.GreaterOrEqual(t, g.Mapping[a].VisualIndex, g.Alignment.ShiftCount)
		}
	}
}

func TestDownbeatAgreement(t *testing.T) {
	g := BuildGrid(Analysis{
		Chords:        spansFor("Am", "Am", "Am", "F", "F", "F", "F", "C"),
		Beats:         beatsFrom(0, 0.5, 8),
		BPM:           120,
		TimeSignature: 4,
	})

	assert.Equal(t, 1.0, g.DownbeatAgreement([]float64{1.5, 3.5}))
	assert.Equal(t, 0.5, g.DownbeatAgreement([]float64{0, 1.52}))
	assert.Equal(t, 0.0, g.DownbeatAgreement([]float64{42}))
	assert.Equal(t, 0.0, g.DownbeatAgreement(nil))
}

func TestSynchronizeChords(t *testing.T) {
	beats := beatsFrom(0, 0.5, 4)

	t.Run("chords bound to beats", func(t *testing.T) {
		spans := SynchronizeChords([]ChordEvent{{Chord: "G", Time: 1.05}, {Chord: "C", Time: 0}}, beats)
		assert.Equal(t, spansFor("C", "C", "G", "G"), spans)
	})

	t.Run("silence before first onset", func(t *testing.T) {
		spans := SynchronizeChords([]ChordEvent{{Chord: "Em", Time: 0.3}}, beats)
		assert.Equal(t, spansFor(NoChord, "Em", "Em", "Em"), spans)
	})

	t.Run("no beats", func(t *testing.T) {
		assert.Empty(t, SynchronizeChords([]ChordEvent{{Chord: "C"}}, nil))
	})
}
