package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	discordAPIURL       = "https://discord.com/api"
	discordAuthorizeURL = "https://discord.com/oauth2/authorize"

	// ManageRoles is the only permission the bot asks for.
	requiredPermissions = 268435456
)

var oauthScopes = []string{"bot", "applications.commands"}

// OAuth drives the one-time authorization-code flow the settings UI uses to
// add the bot to an organizer's guild and learn its guild id. Runtime role
// assignment does not go through here; it uses the bot credential directly.
type OAuth struct {
	clientID     string
	clientSecret string
	apiURL       string
	authorizeURL string
	httpClient   *http.Client
}

func NewOAuth(clientID, clientSecret string) *OAuth {
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiURL:       discordAPIURL,
		authorizeURL: discordAuthorizeURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthorizationURL builds the consent URL that installs the bot with the
// Manage Roles permission. state is the caller's CSRF token.
func (o *OAuth) AuthorizationURL(redirectURI, state string) string {
	params := url.Values{
		"client_id":     {o.clientID},
		"permissions":   {strconv.Itoa(requiredPermissions)},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(oauthScopes, " ")},
	}
	if state != "" {
		params.Set("state", state)
	}
	return o.authorizeURL + "?" + params.Encode()
}

// TokenResponse is Discord's answer to a code exchange. Guild is populated
// when the bot scope was granted and carries the guild the bot was added to.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Guild       *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"guild"`
}

// ExchangeCode swaps an authorization code for tokens.
func (o *OAuth) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if o.clientID == "" || o.clientSecret == "" {
		return nil, fmt.Errorf("discord oauth credentials not configured")
	}

	form := url.Values{
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange code: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	return &tok, nil
}

// Guild is one entry from the authorizing user's guild list.
type Guild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner bool   `json:"owner"`
}

// FetchGuilds lists the guilds of the user who completed the flow.
func (o *OAuth) FetchGuilds(ctx context.Context, accessToken string) ([]Guild, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiURL+"/users/@me/guilds", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch guilds: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch guilds: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var guilds []Guild
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return nil, fmt.Errorf("parse guilds response: %w", err)
	}
	return guilds, nil
}
