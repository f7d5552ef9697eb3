package status

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// Record is one persisted status change
type Record struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SessionID        string    `gorm:"not null;index" json:"session_id"`
	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`
	IsIdle           bool      `gorm:"not null;default:false" json:"is_idle"`
	OverlayEnabled   bool      `gorm:"not null;default:false" json:"overlay_enabled"`
	OverlayVisible   bool      `gorm:"not null;default:false" json:"overlay_visible"`
	AntiSleepEnabled bool      `gorm:"not null;default:false" json:"anti_sleep_enabled"`
	AntiSleepActive  bool      `gorm:"not null;default:false" json:"anti_sleep_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the table name stable across model renames
func (Record) TableName() string {
	return "status_history"
}

// History appends a row to a SQLite database whenever the published state
// differs from the previous one. Rows of one process share a session id.
type History struct {
	mu        sync.Mutex
	db        *gorm.DB
	sessionID string
	last      *Record
}

// OpenHistory opens or creates the database at path
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create history directory")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	return newHistory(db)
}

// newHistory migrates the schema. db is closed if that fails.
func newHistory(db *gorm.DB) (*History, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, errors.Wrap(err, "failed to initialize history schema")
	}
	return &History{db: db, sessionID: uuid.NewString()}, nil
}

// SessionID identifies the rows written by this History
func (h *History) SessionID() string {
	return h.sessionID
}

// Write implements interfaces.StatusSink
func (h *History) Write(status types.RuntimeStatus) error {
	rec := Record{
		SessionID:        h.sessionID,
		Timestamp:        status.Timestamp,
		IsIdle:           status.IsIdle,
		OverlayEnabled:   status.OverlayEnabled,
		OverlayVisible:   status.OverlayVisible,
		AntiSleepEnabled: status.AntiSleepEnabled,
		AntiSleepActive:  status.AntiSleepActive,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil && sameState(*h.last, rec) {
		return nil
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return errors.Wrap(err, "failed to insert status record")
	}
	h.last = &rec
	return nil
}

// Recent returns up to n records, newest first
func (h *History) Recent(n int) ([]Record, error) {
	var records []Record
	result := h.db.Order("timestamp DESC").Order("id DESC").Limit(n).Find(&records)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query status history")
	}
	return records, nil
}

// Close releases the database
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}

func sameState(a, b Record) bool {
	return a.IsIdle == b.IsIdle &&
		a.OverlayEnabled == b.OverlayEnabled &&
		a.OverlayVisible == b.OverlayVisible &&
		a.AntiSleepEnabled == b.AntiSleepEnabled &&
		a.AntiSleepActive == b.AntiSleepActive
}

// Ensure History implements StatusSink
var _ interfaces.StatusSink = (*History)(nil)
