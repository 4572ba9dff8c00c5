package token

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

const defaultRefreshTimeout = 10 * time.Second

// expirySlack is subtracted from the reported token lifetime so a token is
// never handed out moments before it expires server-side.
const expirySlack = 30 * time.Second

// Static is a Provider that always returns the same token. Useful for tests
// and for deployments where an external sidecar keeps the token fresh.
type Static struct {
	// AccessToken is the token returned by Token. When empty, Token returns
	// ErrUnavailable.
	AccessToken string
}

// Token implements Provider.
func (s *Static) Token(context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrUnavailable
	}
	return s.AccessToken, nil
}

// Refresher is a Provider that exchanges an OAuth refresh token for access
// tokens against a token endpoint, caching the result until shortly before
// expiry.
//
// All methods are safe for concurrent use; concurrent callers during a refresh
// share the single in-flight exchange.
type Refresher struct {
	endpoint     string
	clientID     string
	clientSecret string
	refreshToken string
	httpClient   *http.Client

	mu      sync.Mutex
	current string
	expires time.Time
}

// RefresherConfig configures a [Refresher]. Endpoint, ClientID, and
// RefreshToken are required.
type RefresherConfig struct {
	// Endpoint is the OAuth token endpoint URL
	// (e.g., "https://oauth2.googleapis.com/token").
	Endpoint string

	// ClientID and ClientSecret identify the OAuth client.
	ClientID     string
	ClientSecret string

	// RefreshToken is the long-lived grant being exchanged.
	RefreshToken string

	// HTTPClient overrides the default client (10s timeout) when non-nil.
	HTTPClient *http.Client
}

// NewRefresher creates a [Refresher] from cfg.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("token: refresher endpoint must not be empty")
	}
	if cfg.ClientID == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("token: refresher requires client_id and refresh_token")
	}
	c := cfg.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: defaultRefreshTimeout}
	}
	return &Refresher{
		endpoint:     cfg.Endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		httpClient:   c,
	}, nil
}

// tokenResponse is the OAuth token endpoint response shape.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token implements Provider. A cached token is returned while still valid;
// otherwise a refresh-token exchange is performed.
func (r *Refresher) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != "" && time.Now().Before(r.expires) {
		return r.current, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", r.refreshToken)
	form.Set("client_id", r.clientID)
	if r.clientSecret != "" {
		form.Set("client_secret", r.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: refresh call failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: refresh endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode refresh response: %v", ErrUnavailable, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh response missing access_token", ErrUnavailable)
	}

	r.current = tr.AccessToken
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime > expirySlack {
		lifetime -= expirySlack
	}
	r.expires = time.Now().Add(lifetime)
	return r.current, nil
}
