// Package slack implements the notify.Notifier for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/avellora/caresync/internal/notify"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events to a Slack channel via the Web API.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Name identifies the platform.
func (n *Notifier) Name() string { return "slack" }

// Send posts the event as a message with one attachment.
func (n *Notifier) Send(ctx context.Context, ev notify.Event) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slackapi.MsgOptionText(ev.Title, false),
		slackapi.MsgOptionAttachments(eventToAttachment(ev)),
	)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// eventToAttachment converts an Event to a Slack Attachment.
func eventToAttachment(ev notify.Event) slackapi.Attachment {
	color := ev.Color
	if color == "" {
		color = notify.SeverityColor(ev.Severity)
	}
	att := slackapi.Attachment{
		Title:    ev.Title,
		Text:     ev.Body,
		Color:    color,
		Fallback: ev.Title,
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
