package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vantage-tools/vantage/internal/db"
	"github.com/vantage-tools/vantage/internal/models"
	"github.com/vantage-tools/vantage/internal/store"
)

// newTestRouter opens an in-memory store and builds a router over it.
func newTestRouter(t *testing.T, observer func([]models.LogRecord)) (*gin.Engine, *store.Store) {
	t.Helper()
	gormDB, err := db.ConnectMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(gormDB)
	return NewRouter(st, observer), st
}

func postLogs(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, router *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestIngest_StoresBatch(t *testing.T) {
	router, st := newTestRouter(t, nil)

	w := postLogs(t, router, `{
		"sessionId": "sess-42",
		"logs": [
			{"level": "log", "message": "hello", "url": "http://a.test", "timestamp": 1717243200000},
			{"level": "error", "message": "boom", "url": "http://a.test", "timestamp": "2024-06-01T12:00:01Z"}
		]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["stored"] != float64(2) {
		t.Errorf("stored = %v, want 2", body["stored"])
	}

	records, err := st.Query(10, 0, store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want sess-42", records[0].SessionID)
	}
	if !records[0].Timestamp.Equal(time.UnixMilli(1717243200000).UTC()) {
		t.Errorf("Timestamp = %v, want epoch millis preserved", records[0].Timestamp)
	}
}

func TestIngest_PartialAcceptance(t *testing.T) {
	router, st := newTestRouter(t, nil)

	w := postLogs(t, router, `{
		"sessionId": "s1",
		"logs": [
			{"level": "log", "message": "a"},
			{"level": "verbose", "message": "dropped"},
			{"level": "warn", "message": "b"}
		]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["stored"] != float64(2) {
		t.Errorf("stored = %v, want 2", body["stored"])
	}

	records, err := st.Query(10, 0, store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2 valid entries stored", len(records))
	}
	if records[0].Message != "a" || records[1].Message != "b" {
		t.Errorf("messages = %q, %q, want a, b", records[0].Message, records[1].Message)
	}
}

func TestIngest_StructuredMessage(t *testing.T) {
	router, st := newTestRouter(t, nil)

	w := postLogs(t, router, `{
		"sessionId": "s1",
		"logs": [{"level": "info", "message": {"kind": "fetch", "status": 404}}]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	records, err := st.Query(10, 0, store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(records[0].Message, `"kind"`) {
		t.Errorf("Message = %q, want serialized JSON object", records[0].Message)
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	w := postLogs(t, router, `{"logs": [`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestIngest_OversizedPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var buf bytes.Buffer
	buf.WriteString(`{"sessionId": "s1", "logs": [{"level": "log", "message": "`)
	buf.WriteString(strings.Repeat("x", maxBodyBytes))
	buf.WriteString(`"}]}`)

	w := postLogs(t, router, buf.String())
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestIngest_ObserverSeesAcceptedBatch(t *testing.T) {
	var seen []models.LogRecord
	router, _ := newTestRouter(t, func(batch []models.LogRecord) {
		seen = append(seen, batch...)
	})

	postLogs(t, router, `{
		"sessionId": "s1",
		"logs": [
			{"level": "error", "message": "boom"},
			{"level": "nonsense", "message": "dropped"}
		]
	}`)

	if len(seen) != 1 {
		t.Fatalf("observer saw %d records, want 1 (only accepted entries)", len(seen))
	}
	if seen[0].Message != "boom" {
		t.Errorf("observer record = %q, want boom", seen[0].Message)
	}
}

func TestQuery_FiltersAndPagination(t *testing.T) {
	router, st := newTestRouter(t, nil)

	batch := []models.LogRecord{
		{Level: "error", Message: "boom", URL: "http://a.test", SessionID: "s"},
		{Level: "warn", Message: "meh", URL: "http://a.test", SessionID: "s"},
	}
	if _, err := st.InsertBatch(batch); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/logs?level=error&url=http://a.test")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	logs := body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("len = %d, want 1", len(logs))
	}
	rec := logs[0].(map[string]any)
	if rec["message"] != "boom" {
		t.Errorf("message = %v, want boom", rec["message"])
	}
}

func TestQuery_BadParams(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	cases := []struct {
		name   string
		target string
	}{
		{"bad limit", "/logs?limit=abc"},
		{"negative offset", "/logs?offset=-1"},
		{"unknown level", "/logs?level=verbose"},
		{"bad startTime", "/logs?startTime=yesterday"},
		{"inverted range", "/logs?startTime=2024-06-02T00:00:00Z&endTime=2024-06-01T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(t, router, tc.target)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if body := decode(t, w); body["error"] == "" {
				t.Error("expected a descriptive error message")
			}
		})
	}
}

func TestQuery_ExplicitZeroLimit(t *testing.T) {
	router, st := newTestRouter(t, nil)
	if _, err := st.InsertBatch([]models.LogRecord{
		{Level: "log", Message: "present", SessionID: "s"},
	}); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/logs?limit=0")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if logs := decode(t, w)["logs"].([]any); len(logs) != 0 {
		t.Errorf("len = %d, want 0 (limit=0 is not the default)", len(logs))
	}

	// Absent limit still defaults to 100.
	if logs := decode(t, get(t, router, "/logs"))["logs"].([]any); len(logs) != 1 {
		t.Errorf("len = %d, want 1", len(logs))
	}
}

func TestQuery_EmptyResultIsArray(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	w := get(t, router, "/logs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"logs":[]`) {
		t.Errorf("body = %s, want empty array not null", w.Body.String())
	}
}

func TestSearch_Endpoint(t *testing.T) {
	router, st := newTestRouter(t, nil)
	if _, err := st.InsertBatch([]models.LogRecord{
		{Level: "log", Message: "Hello World", SessionID: "s"},
	}); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/logs/search?q=hello")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if logs := decode(t, w)["logs"].([]any); len(logs) != 1 {
		t.Errorf("len = %d, want 1", len(logs))
	}
}

func TestClear_Endpoint(t *testing.T) {
	router, st := newTestRouter(t, nil)
	if _, err := st.InsertBatch([]models.LogRecord{
		{Level: "log", Message: "a", SessionID: "s"},
		{Level: "log", Message: "b", SessionID: "s"},
	}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/logs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["cleared"] != float64(2) {
		t.Errorf("cleared = %v, want 2", body["cleared"])
	}

	count, err := st.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}
}

func TestHealth(t *testing.T) {
	router, st := newTestRouter(t, nil)
	if _, err := st.InsertBatch([]models.LogRecord{{Level: "log", Message: "x", SessionID: "s"}}); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["records"] != float64(1) {
		t.Errorf("records = %v, want 1", body["records"])
	}
}

func TestStart_NilStore(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil store")
	}
	if !strings.Contains(err.Error(), "store is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "store is required")
	}
}

func TestIngestQueryRoundTrip_InsertionOrder(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var logs []string
	for i := 0; i < 5; i++ {
		logs = append(logs, fmt.Sprintf(`{"level": "log", "message": "msg-%d"}`, i))
	}
	w := postLogs(t, router, `{"sessionId": "s", "logs": [`+strings.Join(logs, ",")+`]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decode(t, get(t, router, "/logs?limit=5&offset=0"))["logs"].([]any)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, item := range got {
		if msg := item.(map[string]any)["message"]; msg != fmt.Sprintf("msg-%d", i) {
			t.Errorf("got[%d].message = %v, want msg-%d (insertion order)", i, msg, i)
		}
	}
}
