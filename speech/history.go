package speech

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SynthesisRecord is one row of synthesis history. Settings keeps the full
// request knobs as JSON so schema changes in the knob set never need a
// migration.
type SynthesisRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	LanguageCode string         `gorm:"size:16;index" json:"language_code"`
	EngineUsed   string         `gorm:"size:64;index" json:"engine_used"`
	VoiceUsed    string         `gorm:"size:128" json:"voice_used"`
	TextLength   int            `json:"text_length"`
	Filename     string         `gorm:"size:255" json:"filename"`
	FromCache    bool           `json:"from_cache"`
	Success      bool           `json:"success"`
	Message      string         `gorm:"size:512" json:"message"`
	Settings     datatypes.JSON `json:"settings"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (SynthesisRecord) TableName() string { return "synthesis_records" }

// historyStore persists synthesis outcomes. It is optional: without
// DATABASE_DSN the store is nil and recording is a no-op.
type historyStore struct {
	db *gorm.DB
}

func newHistoryStoreFromEnv() (*historyStore, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		return nil, nil
	}

	driver := strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = inferDriverFromDSN(dsn)
		if driver == "" {
			return nil, errDriverRequired
		}
	}

	db, err := openDatabase(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SynthesisRecord{}); err != nil {
		return nil, err
	}

	return &historyStore{db: db}, nil
}

// Record writes one history row. Failures are logged and swallowed; history
// must never break synthesis.
func (s *historyStore) Record(ctx context.Context, req SynthesisRequest, result SynthesisResult) {
	if s == nil || s.db == nil {
		return
	}

	settings, err := json.Marshal(map[string]any{
		"gender":          req.VoiceGender,
		"age_tone":        req.AgeTone,
		"pitch_semitones": req.PitchSemitones,
		"rate_percent":    req.RatePercent,
		"engine":          req.Engine,
	})
	if err != nil {
		settings = []byte("{}")
	}

	record := SynthesisRecord{
		LanguageCode: strings.ToLower(strings.TrimSpace(req.LanguageCode)),
		EngineUsed:   result.EngineUsed,
		VoiceUsed:    result.VoiceUsed,
		TextLength:   len(strings.TrimSpace(req.Text)),
		Filename:     result.Filename,
		FromCache:    result.FromCache,
		Success:      result.Success,
		Message:      result.Message,
		Settings:     datatypes.JSON(settings),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Printf("speech: record synthesis history failed: %v", err)
	}
}

// Recent returns the latest history rows, newest first.
func (s *historyStore) Recent(ctx context.Context, limit int) ([]SynthesisRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []SynthesisRecord
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
