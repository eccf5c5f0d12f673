package beatgrid

// NoChord is the marker the chord detector emits for musical silence.
const NoChord = "N.C."

const (
	DefaultBPM           = 120.0
	DefaultTimeSignature = 4

	// maxPaddingMeasures bounds timing-derived padding; anything longer is detector noise.
	maxPaddingMeasures = 4
	// pickupGapRatio forces one padding beat when the lead-in exceeds this share of a beat.
	pickupGapRatio = 0.2
	// minPaddingGap is the shortest lead-in (seconds) that can produce padding at all.
	minPaddingGap = 0.05
)

// BeatEvent is one detected beat
type BeatEvent struct {
	Time       float64 `json:"time"`
	BeatNumber int     `json:"beatNum,omitempty"` // position within the measure, 1-indexed; 0 if unknown
}

// ChordSpan binds a chord label to a beat
type ChordSpan struct {
	Chord     string `json:"chord"`
	BeatIndex int    `json:"beatIndex"`
}

// ChordEvent is a raw timed chord from the detector, before beat synchronization
type ChordEvent struct {
	Chord string  `json:"chord"`
	Time  float64 `json:"time"`
}

// GridCell is one cell of the visual grid.
// Shift cells have an empty chord and no timestamp.
type GridCell struct {
	Chord      string   `json:"chord"`
	Timestamp  *float64 `json:"timestamp"`
	BeatNumber int      `json:"beat_number"`
}

// IsShift reports whether the cell is a phase-rotation placeholder.
func (c GridCell) IsShift() bool {
	return c.Chord == "" && c.Timestamp == nil
}

// AudioMappingEntry pairs an original chord timestamp with the grid index
// where its label is rendered.
type AudioMappingEntry struct {
	Chord       string  `json:"chord"`
	Timestamp   float64 `json:"timestamp"`
	VisualIndex int     `json:"visual_index"`
}

// AlignmentResult describes how the raw sequence is placed on the grid
type AlignmentResult struct {
	PaddingCount      int  `json:"padding_count"`
	ShiftCount        int  `json:"shift_count"`
	TotalPaddingCount int  `json:"total_padding_count"`
	ChordAnchored     bool `json:"chord_anchored"` // padding taken from leading N.C. chords rather than timing

	// ShiftScores[s] is the number of chord changes landing on beat 1 with shift s.
	// Nil when the position-based fallback was used.
	ShiftScores []int `json:"shift_scores,omitempty"`
}

// Analysis is the input to BuildGrid
type Analysis struct {
	Chords                []ChordSpan
	Beats                 []BeatEvent
	BPM                   float64
	TimeSignature         int
	FirstDetectedBeatTime float64
}

// Grid is the aligned, render-ready chord grid plus the data the
// playback resolver needs.
type Grid struct {
	Cells                 []GridCell          `json:"cells"`
	Mapping               []AudioMappingEntry `json:"mapping"`
	Alignment             AlignmentResult     `json:"alignment"`
	BPM                   float64             `json:"bpm"`
	TimeSignature         int                 `json:"time_signature"`
	FirstDetectedBeatTime float64             `json:"first_detected_beat_time"`
}

// BeatDuration returns the length of one beat in seconds.
func (g *Grid) BeatDuration() float64 {
	return 60 / g.BPM
}

// RegularStart is the index of the first cell after shift and synthetic padding cells.
func (g *Grid) RegularStart() int {
	if g.Alignment.ChordAnchored {
		return g.Alignment.ShiftCount
	}
	return g.Alignment.TotalPaddingCount
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Cells)
}
