package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/telemetry"
)

// Client delivers outbound activities to a channel's service URL.
type Client struct {
	credentials TokenProvider
	httpClient  *http.Client
}

// NewClient creates a connector client. Pass AnonymousCredentials when the
// bot runs without an app identity.
func NewClient(credentials TokenProvider) *Client {
	return &Client{
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ReplyToActivity posts a reply in the thread of the activity it answers.
// Returns the ID the channel assigned to the delivered activity.
func (c *Client) ReplyToActivity(ctx context.Context, serviceURL string, reply *activity.Activity) (string, error) {
	if reply.ReplyToID == "" {
		return c.SendToConversation(ctx, serviceURL, reply)
	}
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities/%s",
		strings.TrimSuffix(serviceURL, "/"),
		url.PathEscape(reply.ConversationID()),
		url.PathEscape(reply.ReplyToID))
	return c.post(ctx, endpoint, reply)
}

// SendToConversation posts an activity to the conversation without
// threading it under a prior activity.
func (c *Client) SendToConversation(ctx context.Context, serviceURL string, a *activity.Activity) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimSuffix(serviceURL, "/"),
		url.PathEscape(a.ConversationID()))
	return c.post(ctx, endpoint, a)
}

func (c *Client) post(ctx context.Context, endpoint string, a *activity.Activity) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "connector.send", telemetry.SpanAttributes{
		ConversationID: a.ConversationID(),
		ChannelID:      a.ChannelID,
	})
	defer span.End()

	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("failed to deliver activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("activity delivery returned status %d: %s", resp.StatusCode, body)
		span.SetError(err)
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Some channels return an empty body on success.
		return "", nil
	}
	return result.ID, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain connector token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
