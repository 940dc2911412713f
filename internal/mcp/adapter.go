package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vantage-tools/vantage/internal/store"
)

// Tool names exposed to clients. Wire contract.
const (
	toolGetConsoleLogs   = "get_console_logs"
	toolSearchLogs       = "search_logs"
	toolClearConsoleLogs = "clear_console_logs"
)

const defaultLimit = 100

// Adapter maps tool invocations 1:1 onto store calls. It performs no
// business logic beyond argument defaulting and error-to-text conversion.
type Adapter struct {
	store *store.Store
}

// NewAdapter creates an Adapter over an injected store.
func NewAdapter(st *store.Store) *Adapter {
	return &Adapter{store: st}
}

// Tools returns the schemas of the three exposed tools.
func (a *Adapter) Tools() []Tool {
	return []Tool{
		{
			Name:        toolGetConsoleLogs,
			Description: "Fetch captured browser console logs, optionally filtered by level, page URL, and time range. Results are ordered oldest first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit":      map[string]any{"type": "integer", "description": "Maximum number of logs to return", "default": defaultLimit},
					"offset":     map[string]any{"type": "integer", "description": "Number of logs to skip", "default": 0},
					"level":      map[string]any{"type": "string", "enum": []string{"log", "info", "warn", "error"}, "description": "Only return logs at this level"},
					"url":        map[string]any{"type": "string", "description": "Only return logs captured on this page URL"},
					"start_time": map[string]any{"type": "string", "description": "RFC 3339 lower bound on capture time"},
					"end_time":   map[string]any{"type": "string", "description": "RFC 3339 upper bound on capture time"},
				},
			},
		},
		{
			Name:        toolSearchLogs,
			Description: "Search console log messages for a case-insensitive substring. Most recent matches first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Substring to search for"},
					"limit": map[string]any{"type": "integer", "description": "Maximum number of matches to return", "default": defaultLimit},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolClearConsoleLogs,
			Description: "Delete all stored console logs. Irreversible.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// getLogsArgs are the arguments of get_console_logs.
type getLogsArgs struct {
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Level     string `json:"level"`
	URL       string `json:"url"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// searchArgs are the arguments of search_logs.
type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Call invokes the named tool. Unknown names and tool failures are reported
// through the error-flagged result envelope, never returned as errors.
func (a *Adapter) Call(name string, args json.RawMessage) CallResult {
	switch name {
	case toolGetConsoleLogs:
		return a.getConsoleLogs(args)
	case toolSearchLogs:
		return a.searchLogs(args)
	case toolClearConsoleLogs:
		return a.clearConsoleLogs()
	default:
		return errorResult(fmt.Sprintf("unsupported operation: %q", name))
	}
}

func (a *Adapter) getConsoleLogs(raw json.RawMessage) CallResult {
	args := getLogsArgs{Limit: defaultLimit}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if args.Limit <= 0 {
		args.Limit = defaultLimit
	}
	if args.Offset < 0 {
		args.Offset = 0
	}

	filter := store.Filter{Level: args.Level, URL: args.URL}
	var err error
	filter.StartTime, err = parseTime("start_time", args.StartTime)
	if err != nil {
		return errorResult(err.Error())
	}
	filter.EndTime, err = parseTime("end_time", args.EndTime)
	if err != nil {
		return errorResult(err.Error())
	}

	records, err := a.store.Query(args.Limit, args.Offset, filter)
	if err != nil {
		return errorResult("query failed: " + err.Error())
	}
	return recordsResult(records)
}

func (a *Adapter) searchLogs(raw json.RawMessage) CallResult {
	args := searchArgs{Limit: defaultLimit}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if args.Limit <= 0 {
		args.Limit = defaultLimit
	}

	records, err := a.store.Search(args.Query, args.Limit)
	if err != nil {
		return errorResult("search failed: " + err.Error())
	}
	return recordsResult(records)
}

func (a *Adapter) clearConsoleLogs() CallResult {
	deleted, err := a.store.ClearAll()
	if err != nil {
		return errorResult("clear failed: " + err.Error())
	}
	return textResult(fmt.Sprintf("Cleared %d console logs.", deleted))
}

// recordsResult serializes records as indented JSON text.
func recordsResult(records any) CallResult {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errorResult("encode result: " + err.Error())
	}
	return textResult(string(data))
}

func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339, got %q", name, value)
	}
	return &t, nil
}
