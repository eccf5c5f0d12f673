package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAnalysisNotFound is returned when no result is stored for a key
var ErrAnalysisNotFound = errors.New("analysis not found")

// StoredAnalysis is a backend result together with its key
type StoredAnalysis struct {
	Key       analysis.Key     `json:"key"`
	Result    *analysis.Result `json:"result"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AnalysisStore persists backend results. Grids are never stored; they are
// rebuilt from the result on every read.
type AnalysisStore interface {
	Get(ctx context.Context, key analysis.Key) (*StoredAnalysis, error)
	Save(ctx context.Context, key analysis.Key, result *analysis.Result) (*StoredAnalysis, error)
	Delete(ctx context.Context, key analysis.Key) error
}

// GormAnalysisStore keeps results in Postgres
type GormAnalysisStore struct {
	db *gorm.DB
}

func NewGormAnalysisStore(db *gorm.DB) *GormAnalysisStore {
	return &GormAnalysisStore{db: db}
}

// Get loads the result stored under key
func (s *GormAnalysisStore) Get(ctx context.Context, key analysis.Key) (*StoredAnalysis, error) {
	var record models.AnalysisRecord
	err := s.db.WithContext(ctx).
		Where("video_id = ? AND beat_model = ? AND chord_model = ?", key.VideoID, key.BeatModel, key.ChordModel).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", key.VideoID, err)
	}

	var result analysis.Result
	if err := json.Unmarshal([]byte(record.Payload), &result); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", key.VideoID, err)
	}
	return &StoredAnalysis{Key: key, Result: &result, UpdatedAt: record.UpdatedAt}, nil
}

// Save upserts the result for key
func (s *GormAnalysisStore) Save(ctx context.Context, key analysis.Key, result *analysis.Result) (*StoredAnalysis, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode analysis %s: %w", key.VideoID, err)
	}

	record := models.AnalysisRecord{
		VideoID:    key.VideoID,
		BeatModel:  key.BeatModel,
		ChordModel: key.ChordModel,
		BeatCount:  len(result.Beats),
		ChordCount: len(result.SynchronizedChords),
		Payload:    string(payload),
	}
	if result.BeatDetection != nil {
		record.BPM = result.BeatDetection.BPM
		record.TimeSignature = result.BeatDetection.TimeSignature
	}
	if record.ChordCount == 0 {
		record.ChordCount = len(result.Chords)
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}, {Name: "beat_model"}, {Name: "chord_model"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"bpm", "time_signature", "beat_count", "chord_count", "payload", "updated_at", "deleted_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("save analysis %s: %w", key.VideoID, err)
	}

	return &StoredAnalysis{Key: key, Result: result, UpdatedAt: record.UpdatedAt}, nil
}

// Delete removes the result stored under key
func (s *GormAnalysisStore) Delete(ctx context.Context, key analysis.Key) error {
	tx := s.db.WithContext(ctx).
		Where("video_id = ? AND beat_model = ? AND chord_model = ?", key.VideoID, key.BeatModel, key.ChordModel).
		Delete(&models.AnalysisRecord{})
	if tx.Error != nil {
		return fmt.Errorf("delete analysis %s: %w", key.VideoID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// MemoryAnalysisStore keeps results in process memory (no DATABASE_URL)
type MemoryAnalysisStore struct {
	mu      sync.RWMutex
	records map[analysis.Key]StoredAnalysis
	now     func() time.Time
}

func NewMemoryAnalysisStore() *MemoryAnalysisStore {
	return &MemoryAnalysisStore{
		records: make(map[analysis.Key]StoredAnalysis),
		now:     time.Now,
	}
}

func (s *MemoryAnalysisStore) Get(_ context.Context, key analysis.Key) (*StoredAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.records[key]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return &stored, nil
}

func (s *MemoryAnalysisStore) Save(_ context.Context, key analysis.Key, result *analysis.Result) (*StoredAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := StoredAnalysis{Key: key, Result: result, UpdatedAt: s.now()}
	s.records[key] = stored
	return &stored, nil
}

func (s *MemoryAnalysisStore) Delete(_ context.Context, key analysis.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return ErrAnalysisNotFound
	}
	delete(s.records, key)
	return nil
}
