package connector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// DefaultTokenServiceURL is the production user token service endpoint.
const DefaultTokenServiceURL = "https://api.botframework.com"

// UserTokenClient talks to the user token service that brokers OAuth
// connections on behalf of the bot.
type UserTokenClient struct {
	baseURL     string
	appID       string
	credentials TokenProvider
	httpClient  *http.Client
}

// NewUserTokenClient creates a client for the token service at baseURL.
// An empty baseURL selects the production endpoint.
func NewUserTokenClient(baseURL, appID string, credentials TokenProvider) *UserTokenClient {
	if baseURL == "" {
		baseURL = DefaultTokenServiceURL
	}
	return &UserTokenClient{
		baseURL:     baseURL,
		appID:       appID,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// GetUserToken fetches the user's token for the given OAuth connection.
// Returns domain.ErrUserTokenNotFound when the user has not signed in.
func (c *UserTokenClient) GetUserToken(ctx context.Context, userID, connectionName, channelID string) (string, error) {
	query := url.Values{
		"userId":         {userID},
		"connectionName": {connectionName},
		"channelId":      {channelID},
	}
	endpoint := fmt.Sprintf("%s/api/usertoken/GetToken?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("user token request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", domain.ErrUserTokenNotFound
	default:
		return "", fmt.Errorf("user token request returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode user token response: %w", err)
	}
	if body.Token == "" {
		return "", domain.ErrUserTokenNotFound
	}
	return body.Token, nil
}

// SignOut clears the user's token for the given OAuth connection.
func (c *UserTokenClient) SignOut(ctx context.Context, userID, connectionName, channelID string) error {
	query := url.Values{
		"userId":         {userID},
		"connectionName": {connectionName},
		"channelId":      {channelID},
	}
	endpoint := fmt.Sprintf("%s/api/usertoken/SignOut?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign out request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sign out request returned status %d", resp.StatusCode)
	}
	return nil
}

// SignInURL builds the sign-in link embedded in OAuth cards. The state
// parameter carries the conversation reference so the token service can
// resume the conversation after login.
func (c *UserTokenClient) SignInURL(ctx context.Context, connectionName, channelID, conversationID, userID string) (string, error) {
	state, err := encodeTokenExchangeState(c.appID, connectionName, channelID, conversationID, userID)
	if err != nil {
		return "", err
	}

	query := url.Values{"state": {state}}
	endpoint := fmt.Sprintf("%s/api/botsignin/GetSignInUrl?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign in url request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sign in url request returned status %d", resp.StatusCode)
	}

	link, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return string(link), nil
}

func (c *UserTokenClient) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain connector token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// encodeTokenExchangeState packs the conversation reference into the opaque
// state blob the token service echoes back after sign-in.
func encodeTokenExchangeState(appID, connectionName, channelID, conversationID, userID string) (string, error) {
	state := map[string]any{
		"connectionName": connectionName,
		"msAppId":        appID,
		"conversation": map[string]any{
			"channelId":    channelID,
			"conversation": map[string]string{"id": conversationID},
			"user":         map[string]string{"id": userID},
		},
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode token exchange state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
