// Package store implements the durable append-and-query store for captured
// console log records.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vantage-tools/vantage/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidFilter marks a query rejected because of an inconsistent filter
// (a caller error, as opposed to a storage failure).
var ErrInvalidFilter = errors.New("store: invalid filter")

// Filter narrows a Query. Zero-valued fields impose no constraint; all
// present fields must match (AND semantics).
type Filter struct {
	Level     string
	URL       string
	StartTime *time.Time
	EndTime   *time.Time
}

func (f Filter) validate() error {
	if f.StartTime != nil && f.EndTime != nil && f.StartTime.After(*f.EndTime) {
		return fmt.Errorf("%w: startTime %s is after endTime %s",
			ErrInvalidFilter, f.StartTime.Format(time.RFC3339), f.EndTime.Format(time.RFC3339))
	}
	return nil
}

// Store wraps the shared database handle. It is constructed once at startup
// and injected into every surface that reads or writes records; each method
// is a self-contained transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an already-connected, migrated database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InsertBatch appends records in order and assigns their IDs, all within a
// single transaction. Existing rows are never mutated. Retried batches are
// treated as fresh inserts: there is no dedup key, so a batch retried after
// a failure that followed a partial commit can produce duplicate rows.
func (s *Store) InsertBatch(records []models.LogRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := tx.Create(&records[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: insert batch of %d: %w", len(records), err)
	}
	return len(records), nil
}

// Query returns records matching the filter, ordered by ID ascending.
// A zero limit returns no records; a negative limit falls back to the
// 100-record default. Pagination is offset-based: concurrent inserts
// between pages may cause skips or duplicates, an accepted tradeoff for
// a local tool.
func (s *Store) Query(limit, offset int, f Filter) ([]models.LogRecord, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []models.LogRecord{}, nil
	}
	if limit < 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.Model(&models.LogRecord{})
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.URL != "" {
		q = q.Where("url = ?", f.URL)
	}
	if f.StartTime != nil {
		q = q.Where("timestamp >= ?", *f.StartTime)
	}
	if f.EndTime != nil {
		q = q.Where("timestamp <= ?", *f.EndTime)
	}

	var records []models.LogRecord
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return records, nil
}

// Search returns records whose message contains text, case-insensitively,
// most recent first. Empty text degrades to a filterless browse; limit
// semantics match Query.
func (s *Store) Search(text string, limit int) ([]models.LogRecord, error) {
	if limit == 0 {
		return []models.LogRecord{}, nil
	}
	if limit < 0 {
		limit = 100
	}

	q := s.db.Model(&models.LogRecord{})
	if text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		// '|' as the escape character: a literal backslash here would be
		// consumed by MySQL's own string escaping, which SQLite lacks.
		q = q.Where("LOWER(message) LIKE ? ESCAPE '|'", pattern)
	}

	var records []models.LogRecord
	if err := q.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: search %q: %w", text, err)
	}
	return records, nil
}

// ClearAll irreversibly removes every record and returns the count present
// immediately before the call. A clear that races an in-flight InsertBatch
// may land on either side of it; no atomicity is guaranteed between the two.
func (s *Store) ClearAll() (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LogRecord{}).Count(&deleted).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.LogRecord{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("store: clear all: %w", err)
	}
	return deleted, nil
}

// Count returns the total number of stored records.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&models.LogRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return count, nil
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`|`, `||`, `%`, `|%`, `_`, `|_`)
	return r.Replace(s)
}
