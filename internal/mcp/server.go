package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
)

// serverName and serverVersion identify this server during initialize.
const (
	serverName    = "vantage"
	serverVersion = "1.0.0"
)

// Server speaks line-delimited JSON-RPC 2.0 over a reader/writer pair,
// normally stdin/stdout.
type Server struct {
	adapter *Adapter
	in      io.Reader
	out     io.Writer
	mu      sync.Mutex // serializes writes to out
}

// NewServer creates a stdio tool server over the given streams.
func NewServer(adapter *Adapter, in io.Reader, out io.Writer) *Server {
	return &Server{adapter: adapter, in: in, out: out}
}

// Run reads requests until EOF or context cancellation. Malformed lines get
// a parse-error response; notifications (requests without an id) are
// processed but never answered.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Tool results can carry large log payloads; requests stay small, but
	// keep headroom for big inline arguments.
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, codeParseError, "parse error: "+err.Error())
			continue
		}
		s.handle(req)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp: read: %w", err)
	}
	return nil
}

func (s *Server) handle(req request) {
	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		})
	case "notifications/initialized":
		// Notification, no response.
	case "tools/list":
		s.writeResult(req.ID, map[string]any{"tools": s.adapter.Tools()})
	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.writeError(req.ID, codeInvalidParams, "invalid params: "+err.Error())
			return
		}
		s.writeResult(req.ID, s.adapter.Call(params.Name, params.Arguments))
	case "ping":
		s.writeResult(req.ID, map[string]any{})
	default:
		if req.ID == nil {
			return // unknown notification, ignore
		}
		s.writeError(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) writeResult(id, result any) {
	if id == nil {
		return
	}
	s.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id any, code int, message string) {
	s.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("mcp: marshal response: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		log.Printf("mcp: write response: %v", err)
	}
}
