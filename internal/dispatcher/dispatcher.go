// Package dispatcher delivers captured log batches to the Vantage ingestion
// endpoint, retrying failed sends on a fixed backoff schedule.
package dispatcher

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// retrySchedule is the fixed delay before each retry. One immediate attempt
// plus one retry per entry, then the batch is abandoned.
var retrySchedule = [...]time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// requestTimeout bounds a single delivery attempt, separately from the
// backoff delay between attempts.
const requestTimeout = 5 * time.Second

// Entry is one captured console event as sent on the wire.
type Entry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// payload is the POST /logs request body.
type payload struct {
	Logs      []Entry `json:"logs"`
	SessionID string  `json:"sessionId"`
}

// Client sends log batches to an ingestion endpoint. Send is
// fire-and-forget: delivery and retries happen on a goroutine owning that
// batch's retry state, so concurrent Send calls never interfere with each
// other's attempt counts.
type Client struct {
	serverURL string
	sessionID string
	deliver   func(payload) error
	sleep     func(time.Duration)
	wg        sync.WaitGroup
}

// Opts configures a Client.
type Opts struct {
	ServerURL string // ingestion server base URL, e.g. "http://localhost:4613"
	SessionID string // opaque session correlator; generated when empty

	// For testing: replace the HTTP delivery and the backoff sleep.
	Deliver func(logs []Entry, sessionID string) error
	Sleep   func(time.Duration)
}

// New creates a Client.
func New(opts Opts) *Client {
	c := &Client{
		serverURL: opts.ServerURL,
		sessionID: opts.SessionID,
		sleep:     time.Sleep,
	}
	if c.sessionID == "" {
		c.sessionID = newSessionID()
	}
	if opts.Sleep != nil {
		c.sleep = opts.Sleep
	}
	if opts.Deliver != nil {
		c.deliver = func(p payload) error { return opts.Deliver(p.Logs, p.SessionID) }
	} else {
		c.deliver = c.post
	}
	return c
}

// SessionID returns the session correlator attached to every batch.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Send queues one batch for delivery and returns immediately. The identical
// batch is re-sent on every retry; after the schedule is exhausted the batch
// is dropped with only a log line as a trace. Callers needing stronger
// guarantees must wrap this client.
func (c *Client) Send(batch []Entry) {
	if len(batch) == 0 {
		return
	}
	p := payload{Logs: batch, SessionID: c.sessionID}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(p)
	}()
}

// Wait blocks until all in-flight batches have been delivered or abandoned.
func (c *Client) Wait() {
	c.wg.Wait()
}

// run owns the retry state for a single batch.
func (c *Client) run(p payload) {
	for attempt := 0; ; attempt++ {
		err := c.deliver(p)
		if err == nil {
			return
		}
		if attempt >= len(retrySchedule) {
			log.Printf("dispatcher: dropping batch of %d after %d attempts: %v", len(p.Logs), attempt+1, err)
			return
		}
		c.sleep(retrySchedule[attempt])
	}
}

// post performs one HTTP delivery attempt.
func (c *Client) post(p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("dispatcher: marshal batch: %w", err)
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Post(c.serverURL+"/logs", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatcher: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatcher: server returned %s", resp.Status)
	}
	return nil
}

// newSessionID generates an opaque session correlator, assigned once per
// client lifecycle and reused for all of its batches.
func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(b)
}
