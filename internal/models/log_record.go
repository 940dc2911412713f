// Package models defines the GORM models persisted by Vantage.
package models

import "time"

// Levels recognized on ingestion. Entries carrying any other level are
// dropped during batch validation rather than coerced.
const (
	LevelLog   = "log"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// KnownLevel reports whether level is one of the recognized console levels.
func KnownLevel(level string) bool {
	switch level {
	case LevelLog, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// LogRecord is one captured console event. IDs are assigned by the store in
// insertion order and are strictly increasing; Timestamp is the client-side
// capture instant and is stored verbatim, so it need not be monotonic
// relative to ID when batches arrive out of order after retries.
type LogRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string    `gorm:"size:8;index" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`
	// 768 chars is the widest utf8mb4 column InnoDB can index whole
	// (3072-byte key limit).
	URL       string    `gorm:"size:768;index" json:"url,omitempty"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	SessionID string    `gorm:"size:64;index" json:"sessionId"`
	CreatedAt time.Time `json:"-"`
}
