// Package funcs invokes the serverless backend functions over HTTPS.
package funcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avellora/caresync/internal/channel"
)

// defaultTimeout bounds one function invocation round-trip.
const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response body is kept for messages.
const maxErrorBody = 512

// TokenSource supplies a bearer token for function invocations.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client implements channel.Dispatcher against the send-channel-message
// serverless function.
type Client struct {
	sendURL string
	tokens  TokenSource
	http    *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	SendMessageURL string
	Tokens         TokenSource
	HTTPClient     *http.Client  // defaults to a client with Timeout
	Timeout        time.Duration // defaults to defaultTimeout
}

// NewClient creates a Client. A Client with an empty SendMessageURL is valid
// but fails every Dispatch with channel.ErrEndpointNotConfigured.
func NewClient(opts ClientOpts) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		sendURL: opts.SendMessageURL,
		tokens:  opts.Tokens,
		http:    httpClient,
	}
}

// sendPayload is the function's request body.
type sendPayload struct {
	ConversationID string `json:"conversation_id"`
	ChannelARN     string `json:"channel_arn"`
	Content        string `json:"content"`
	SenderName     string `json:"sender_name"`
}

// sendResult is the function's response body.
type sendResult struct {
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Dispatch invokes the send function and returns the backend confirmation.
func (c *Client) Dispatch(ctx context.Context, req channel.SendRequest) (*channel.Confirmation, error) {
	if c.sendURL == "" {
		return nil, channel.ErrEndpointNotConfigured
	}
	if req.ChannelARN == "" {
		return nil, fmt.Errorf("funcs: dispatch: channel reference is required")
	}
	if c.tokens == nil {
		return nil, channel.ErrNotAuthenticated
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("funcs: dispatch: %w: %v", channel.ErrNotAuthenticated, err)
	}

	body, err := json.Marshal(sendPayload{
		ConversationID: req.ConversationID,
		ChannelARN:     req.ChannelARN,
		Content:        req.Content,
		SenderName:     req.SenderName,
	})
	if err != nil {
		return nil, fmt.Errorf("funcs: dispatch: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("funcs: dispatch: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("funcs: dispatch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("funcs: dispatch: %w (status %d)", channel.ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("funcs: dispatch: backend rejected send (status %d): %s", resp.StatusCode, snippet)
	}

	var result sendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("funcs: dispatch: decode response: %w", err)
	}
	if result.MessageID == "" {
		return nil, fmt.Errorf("funcs: dispatch: backend returned no message ID")
	}
	return &channel.Confirmation{MessageID: result.MessageID, CreatedAt: result.CreatedAt}, nil
}
