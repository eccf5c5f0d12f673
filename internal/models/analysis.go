package models

import (
	"time"

	"gorm.io/gorm"
)

// AnalysisRecord stores one backend analysis result, keyed by the video and
// the models that produced it
type AnalysisRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	VideoID    string `gorm:"not null;uniqueIndex:idx_analysis_key" json:"video_id"`
	BeatModel  string `gorm:"not null;default:'';uniqueIndex:idx_analysis_key" json:"beat_model"`
	ChordModel string `gorm:"not null;default:'';uniqueIndex:idx_analysis_key" json:"chord_model"`

	// Tempo metadata duplicated out of the payload for querying
	BPM           float64 `json:"bpm"`
	TimeSignature int     `json:"time_signature"`
	BeatCount     int     `json:"beat_count"`
	ChordCount    int     `json:"chord_count"`

	Payload string `gorm:"type:jsonb;not null" json:"-"` // raw backend result
}
