package handlers

const (
	// Query parameters selecting which backend models produced an analysis
	queryBeatModel  = "beat_model"
	queryChordModel = "chord_model"

	// Playback positions beyond this are rejected as client bugs
	maxPlaybackSeconds = 24 * 60 * 60

	// Grids whose downbeats agree less than this with the detector are reported to Sentry
	lowDownbeatAgreement = 0.5
)
