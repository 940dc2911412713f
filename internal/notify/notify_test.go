package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/vantage-tools/vantage/internal/models"
)

// mockAdapter records sent notifications.
type mockAdapter struct {
	sent []Notification
	err  error
}

func (m *mockAdapter) Connect(ctx context.Context) error { return nil }
func (m *mockAdapter) Close() error                      { return nil }
func (m *mockAdapter) Send(ctx context.Context, n Notification) error {
	m.sent = append(m.sent, n)
	return m.err
}

func TestObserve_ForwardsAtOrAboveThreshold(t *testing.T) {
	m := &mockAdapter{}
	w := NewWatcher(m, "warn")

	w.Observe([]models.LogRecord{
		{Level: "log", Message: "chatty"},
		{Level: "warn", Message: "heads up"},
		{Level: "error", Message: "boom", URL: "http://app.test"},
	})

	if len(m.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(m.sent))
	}
	if m.sent[0].Body != "heads up" {
		t.Errorf("sent[0].Body = %q, want heads up", m.sent[0].Body)
	}
	if !strings.Contains(m.sent[1].Title, "http://app.test") {
		t.Errorf("Title = %q, want to mention page URL", m.sent[1].Title)
	}
}

func TestObserve_DefaultThresholdIsError(t *testing.T) {
	m := &mockAdapter{}
	w := NewWatcher(m, "")

	w.Observe([]models.LogRecord{
		{Level: "warn", Message: "ignored"},
		{Level: "error", Message: "forwarded"},
	})

	if len(m.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(m.sent))
	}
	if m.sent[0].Level != "error" {
		t.Errorf("Level = %q, want error", m.sent[0].Level)
	}
}

func TestObserve_SendFailureDoesNotPanic(t *testing.T) {
	m := &mockAdapter{err: errors.New("rate limited")}
	w := NewWatcher(m, "error")

	// Best-effort: a failing adapter must not propagate.
	w.Observe([]models.LogRecord{{Level: "error", Message: "boom"}})
	if len(m.sent) != 1 {
		t.Errorf("sent = %d, want 1 attempt", len(m.sent))
	}
}

func TestObserve_TruncatesLongMessages(t *testing.T) {
	m := &mockAdapter{}
	w := NewWatcher(m, "error")

	w.Observe([]models.LogRecord{{Level: "error", Message: strings.Repeat("x", 2000)}})
	if len(m.sent[0].Body) > 510 {
		t.Errorf("Body length = %d, want truncated", len(m.sent[0].Body))
	}
}

func TestObserve_TruncatesOnRuneBoundary(t *testing.T) {
	m := &mockAdapter{}
	w := NewWatcher(m, "error")

	w.Observe([]models.LogRecord{{Level: "error", Message: strings.Repeat("ошибка ", 200)}})

	body := m.sent[0].Body
	if !utf8.ValidString(body) {
		t.Fatalf("Body is not valid UTF-8: %q", body)
	}
	if got := utf8.RuneCountInString(body); got != 501 { // 500 plus the ellipsis
		t.Errorf("Body rune count = %d, want 501", got)
	}
}

func TestLevelRank_UnknownBelowEverything(t *testing.T) {
	if levelRank("nonsense") >= levelRank("log") {
		t.Error("unknown level should rank below log")
	}
}
