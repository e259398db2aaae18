// Package connector implements the outbound half of the activity protocol:
// delivering replies to the channel's service URL and talking to the user
// token service for SSO.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	loginHost    = "https://login.microsoftonline.com"
	tokenScope   = "https://api.botframework.com/.default"
	multiTenant  = "botframework.com"
	tokenLeeway  = 60 * time.Second
	tokenTimeout = 10 * time.Second
)

// TokenProvider supplies bearer tokens for outbound connector calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// AnonymousCredentials is used when no app identity is configured, for
// example against the local emulator. Requests carry no Authorization header.
type AnonymousCredentials struct{}

func (AnonymousCredentials) Token(context.Context) (string, error) { return "", nil }

// AppCredentials obtains service tokens for the bot's app identity via the
// client credentials grant and caches them until shortly before expiry.
type AppCredentials struct {
	appID    string
	password string
	tenantID string
	client   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAppCredentials creates credentials for the given app identity. An empty
// tenant ID selects the multi-tenant endpoint.
func NewAppCredentials(appID, password, tenantID string) *AppCredentials {
	return &AppCredentials{
		appID:    appID,
		password: password,
		tenantID: tenantID,
		client:   &http.Client{Timeout: tokenTimeout},
	}
}

// Token returns a cached service token, refreshing it when expired.
func (c *AppCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	token, expiresIn, err := c.requestToken(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expires = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenLeeway)
	return c.token, nil
}

func (c *AppCredentials) requestToken(ctx context.Context) (string, int, error) {
	tenant := c.tenantID
	if tenant == "" {
		tenant = multiTenant
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginHost, tenant)

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.appID},
		"client_secret": {c.password},
		"scope":         {tokenScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("token response contained no access token")
	}
	return body.AccessToken, body.ExpiresIn, nil
}
