package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vantage-tools/vantage/internal/models"
	"github.com/vantage-tools/vantage/internal/store"
)

// ingestEntry is one raw entry within an ingestion batch. Message accepts
// either a plain JSON string or arbitrary structured JSON, which is
// serialized verbatim for storage.
type ingestEntry struct {
	Level     string          `json:"level"`
	Message   json.RawMessage `json:"message"`
	URL       string          `json:"url"`
	Timestamp flexTime        `json:"timestamp"`
}

// ingestRequest is the POST /logs body.
type ingestRequest struct {
	Logs      []ingestEntry `json:"logs"`
	SessionID string        `json:"sessionId"`
}

// flexTime accepts either an RFC 3339 string or epoch milliseconds, the two
// timestamp encodings extensions emit.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		parsed, err := time.Parse(time.RFC3339Nano, strings.Trim(s, `"`))
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

// messageText renders the message payload as stored text: JSON strings are
// unquoted, everything else keeps its serialized JSON form.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func handleIngest(st *store.Store, observer func([]models.LogRecord)) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		var req ingestRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "payload exceeds 10MB limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid JSON body: " + err.Error()})
			return
		}

		// Partial acceptance: entries with unrecognized levels are dropped,
		// the rest of the batch still goes through.
		records := make([]models.LogRecord, 0, len(req.Logs))
		for _, entry := range req.Logs {
			if !models.KnownLevel(entry.Level) {
				continue
			}
			records = append(records, models.LogRecord{
				Level:     entry.Level,
				Message:   messageText(entry.Message),
				URL:       entry.URL,
				Timestamp: entry.Timestamp.Time,
				SessionID: req.SessionID,
			})
		}

		stored, err := st.InsertBatch(records)
		if err != nil {
			log.Printf("server: ingest batch failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		if observer != nil && stored > 0 {
			observer(records)
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "stored": stored})
	}
}

func handleQuery(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := intParam(c, "limit", 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		offset, err := intParam(c, "offset", 0)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		filter := store.Filter{
			Level: c.Query("level"),
			URL:   c.Query("url"),
		}
		if filter.Level != "" && !models.KnownLevel(filter.Level) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level " + strconv.Quote(filter.Level)})
			return
		}
		filter.StartTime, err = timeParam(c, "startTime")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.EndTime, err = timeParam(c, "endTime")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		records, err := st.Query(limit, offset, filter)
		if err != nil {
			if errors.Is(err, store.ErrInvalidFilter) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Printf("server: query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if records == nil {
			records = []models.LogRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

func handleSearch(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := intParam(c, "limit", 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		records, err := st.Search(c.Query("q"), limit)
		if err != nil {
			log.Printf("server: search failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if records == nil {
			records = []models.LogRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

func handleClear(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := st.ClearAll()
		if err != nil {
			log.Printf("server: clear failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": deleted})
	}
}

func handleHealth(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := st.Count()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "records": count})
	}
}

// intParam parses an optional non-negative integer query parameter.
func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer, got " + strconv.Quote(raw))
	}
	if v < 0 {
		return 0, errors.New(name + " must not be negative")
	}
	return v, nil
}

// timeParam parses an optional RFC 3339 or epoch-millisecond time parameter.
func timeParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(millis).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, errors.New(name + " must be RFC 3339 or epoch milliseconds, got " + strconv.Quote(raw))
	}
	return &t, nil
}
