package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	defaultAPIURL   = "https://api.twitch.tv/helix"
	defaultTimeout  = 30 * time.Second

	// Helix caps user_login query params at 100 per request.
	maxBatchSize = 100

	// Refresh the app token once fewer than 5 minutes of validity remain,
	// so a token never expires mid-batch.
	tokenExpiryMargin = 5 * time.Minute
)

// ErrNotConfigured indicates missing Twitch credentials. This is a
// deployment problem; callers must not swallow it.
var ErrNotConfigured = errors.New("twitch: client id and secret not configured")

// StreamInfo describes one currently-live stream as reported by Helix.
type StreamInfo struct {
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameName    string    `json:"game_name"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	Language    string    `json:"language"`
	StartedAt   time.Time `json:"started_at"`
}

// Client is an app-authenticated (client credentials) Twitch Helix client.
// Construct one per process and share it; the token cache is safe for
// concurrent use.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiURL       string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     defaultTokenURL,
		apiURL:       defaultAPIURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
}

// IsConfigured reports whether credentials are present.
func (c *Client) IsConfigured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// AppAccessToken returns a cached app access token, requesting a fresh one
// when the cached token has less than 5 minutes of validity left. The lock
// is held across the refresh so concurrent callers share one request
// instead of racing the token endpoint.
func (c *Client) AppAccessToken(ctx context.Context) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expiresAt) > tokenExpiryMargin {
		return c.token, nil
	}

	log.Printf("[twitch] requesting new app access token")

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	log.Printf("[twitch] access token obtained, expires in %ds", tok.ExpiresIn)
	return c.token, nil
}

// ExtractUsername normalizes a free-text channel URL or handle into a
// canonical Twitch login. Returns "" when the input cannot be interpreted
// as a Twitch channel; callers must skip such entries rather than poll.
func (c *Client) ExtractUsername(channelURL string) string {
	return ExtractUsername(channelURL)
}

// ExtractUsername accepts https://twitch.tv/user, www.twitch.tv/user,
// twitch.tv/user and bare handles.
func ExtractUsername(channelURL string) string {
	u := strings.ToLower(strings.TrimSpace(channelURL))
	if u == "" {
		return ""
	}
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")

	if rest, ok := strings.CutPrefix(u, "twitch.tv/"); ok {
		return firstSegment(rest)
	}

	// No recognizable domain: a dot-free value is taken as a bare handle.
	if !strings.Contains(u, ".") {
		return firstSegment(u)
	}
	return ""
}

func firstSegment(s string) string {
	s, _, _ = strings.Cut(s, "/")
	s, _, _ = strings.Cut(s, "?")
	return s
}

// StreamsByLogin batch-checks liveness for a list of logins in a single
// Helix call and returns only the streams that are currently live. Logins
// absent from the result are offline. Input is deduplicated and capped at
// the Helix limit of 100. Remote failures degrade to an empty slice plus
// the error, so one platform outage cannot abort a whole reconciliation
// pass; missing credentials propagate as ErrNotConfigured.
func (c *Client) StreamsByLogin(ctx context.Context, logins []string) ([]StreamInfo, error) {
	if len(logins) == 0 {
		return nil, nil
	}

	token, err := c.AppAccessToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		log.Printf("[twitch] batch status check failed: %v", err)
		return nil, err
	}

	unique := dedupe(logins)
	if len(unique) > maxBatchSize {
		unique = unique[:maxBatchSize]
	}

	q := url.Values{}
	for _, login := range unique {
		q.Add("user_login", login)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/streams?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[twitch] batch status check failed: %v", err)
		return nil, fmt.Errorf("streams request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		log.Printf("[twitch] batch status check failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, fmt.Errorf("streams request: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []StreamInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse streams response: %w", err)
	}

	log.Printf("[twitch] checked %d logins, %d live", len(unique), len(payload.Data))
	return payload.Data, nil
}

func dedupe(logins []string) []string {
	seen := make(map[string]struct{}, len(logins))
	out := make([]string, 0, len(logins))
	for _, l := range logins {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
