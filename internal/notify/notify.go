// Package notify forwards noteworthy captured records to chat platforms
// (Slack, Discord). Delivery is best-effort and never affects ingestion.
package notify

import (
	"context"
	"log"
	"strings"

	"github.com/vantage-tools/vantage/internal/models"
)

// Adapter is the interface that platform-specific implementations must
// satisfy.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Send delivers one notification to the platform.
	Send(ctx context.Context, n Notification) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Notification is a captured record formatted for display in chat.
type Notification struct {
	Title     string // headline, e.g. "Console error on http://app.test"
	Body      string // the log message
	Level     string // "log", "info", "warn", "error"
	URL       string // capture page, may be empty
	SessionID string
}

// levelRank orders console levels for threshold comparison.
func levelRank(level string) int {
	switch level {
	case models.LevelLog:
		return 0
	case models.LevelInfo:
		return 1
	case models.LevelWarn:
		return 2
	case models.LevelError:
		return 3
	}
	return -1
}

// Watcher observes accepted ingestion batches and forwards records at or
// above a minimum level.
type Watcher struct {
	adapter  Adapter
	minLevel string
}

// NewWatcher creates a Watcher. minLevel defaults to error when empty.
func NewWatcher(adapter Adapter, minLevel string) *Watcher {
	if minLevel == "" {
		minLevel = models.LevelError
	}
	return &Watcher{adapter: adapter, minLevel: minLevel}
}

// Observe forwards qualifying records from one accepted batch. Failures are
// logged, never returned: the ingestion path must not depend on chat.
func (w *Watcher) Observe(batch []models.LogRecord) {
	threshold := levelRank(w.minLevel)
	for _, rec := range batch {
		if levelRank(rec.Level) < threshold {
			continue
		}
		n := Notification{
			Title:     title(rec),
			Body:      truncate(rec.Message, 500),
			Level:     rec.Level,
			URL:       rec.URL,
			SessionID: rec.SessionID,
		}
		if err := w.adapter.Send(context.Background(), n); err != nil {
			log.Printf("notify: send failed: %v", err)
		}
	}
}

func title(rec models.LogRecord) string {
	var b strings.Builder
	b.WriteString("Console ")
	b.WriteString(rec.Level)
	if rec.URL != "" {
		b.WriteString(" on ")
		b.WriteString(rec.URL)
	}
	return b.String()
}

// truncate caps s at max runes, not bytes, so multi-byte text is never
// cut mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
