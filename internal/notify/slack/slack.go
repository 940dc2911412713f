// Package slack implements the notify Adapter for Slack using the Web API.
package slack

import (
	"context"
	"fmt"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/vantage-tools/vantage/internal/notify"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements notify.Adapter for Slack.
type Adapter struct {
	client    slackClient
	channelID string
	mu        sync.Mutex
	connected bool
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}

	a := &Adapter{channelID: opts.ChannelID}
	if opts.Client != nil {
		a.client = opts.Client
	} else {
		a.client = slackapi.New(opts.BotToken)
	}
	return a, nil
}

// Connect verifies the token with auth.test.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.connected = true
	return nil
}

// Send posts the notification as an attachment with a level-colored sidebar.
func (a *Adapter) Send(ctx context.Context, n notify.Notification) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	attachment := slackapi.Attachment{
		Title: n.Title,
		Text:  n.Body,
		Color: levelColor(n.Level),
		Fields: []slackapi.AttachmentField{
			{Title: "Session", Value: n.SessionID, Short: true},
			{Title: "Level", Value: n.Level, Short: true},
		},
	}

	_, _, err := a.client.PostMessageContext(ctx, a.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close marks the adapter disconnected. The Web API client holds no
// long-lived connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// levelColor maps console levels to Slack sidebar colors.
func levelColor(level string) string {
	switch level {
	case "error":
		return "#d00000"
	case "warn":
		return "#e8a317"
	default:
		return "#439fe0"
	}
}
