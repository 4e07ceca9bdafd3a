package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/viewer-gg/costream/src/costream/config"
	"github.com/viewer-gg/costream/src/costream/discord"
	"github.com/viewer-gg/costream/src/costream/poller"
	"github.com/viewer-gg/costream/src/costream/types"
)

const testSecret = "test-secret"

type fakePoller struct {
	result  poller.Result
	snapErr error
}

func (f *fakePoller) PollAllStreams(context.Context) poller.Result { return f.result }
func (f *fakePoller) CollectViewershipSnapshot(context.Context) error {
	return f.snapErr
}

type fakeApprover struct {
	err    error
	lastID string
}

func (f *fakeApprover) HandleApproved(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

type fakeProber struct{ canManage bool }

func (f *fakeProber) CanManageRoles(string) bool { return f.canManage }

type fakeConfigStore struct {
	cfg   *types.DiscordConfig
	saved []types.DiscordConfig
	logs  []types.DiscordRoleLog
}

func (f *fakeConfigStore) DiscordConfig(context.Context, string) (*types.DiscordConfig, error) {
	return f.cfg, nil
}

func (f *fakeConfigStore) SaveDiscordConfig(_ context.Context, cfg *types.DiscordConfig) error {
	f.saved = append(f.saved, *cfg)
	return nil
}

func (f *fakeConfigStore) RecentRoleLogs(context.Context, string, int) ([]types.DiscordRoleLog, error) {
	return f.logs, nil
}

type fakeExchanger struct {
	tok *discord.TokenResponse
	err error
}

func (f *fakeExchanger) AuthorizationURL(redirectURI, state string) string {
	return "https://discord.com/oauth2/authorize?redirect_uri=" + redirectURI + "&state=" + state
}

func (f *fakeExchanger) ExchangeCode(context.Context, string, string) (*discord.TokenResponse, error) {
	return f.tok, f.err
}

func newTestServer(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		JWTSecret:    testSecret,
		AllowOrigins: []string{"http://localhost:3000"},
	}
	return New(cfg, deps)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doRequest(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doJSON(r *gin.Engine, method, path, auth string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsOpen(t *testing.T) {
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})
	rec := doRequest(r, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestV1RequiresToken(t *testing.T) {
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	if rec := doRequest(r, http.MethodPost, "/v1/poll/run", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d", rec.Code)
	}
	if rec := doRequest(r, http.MethodPost, "/v1/poll/run", "Bearer not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d", rec.Code)
	}
}

func TestV1RefusedWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{AllowOrigins: []string{"http://localhost:3000"}}
	r := New(cfg, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	// A token signed with an empty key must not get through either.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := tok.SignedString([]byte(""))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if rec := doRequest(r, http.MethodPost, "/v1/poll/run", "Bearer "+signed); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("empty-key token: status = %d, want 503", rec.Code)
	}
	if rec := doRequest(r, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz must stay open: status = %d", rec.Code)
	}
}

func TestPollRun(t *testing.T) {
	p := &fakePoller{result: poller.Result{Success: true, Checked: 4, Live: 2}}
	r := newTestServer(t, Deps{Poller: p, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	rec := doRequest(r, http.MethodPost, "/v1/poll/run", bearerToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got poller.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Checked != 4 || got.Live != 2 {
		t.Errorf("result = %+v", got)
	}
}

func TestPollRunFailure(t *testing.T) {
	p := &fakePoller{result: poller.Result{Success: false, Message: "load tournaments: gone"}}
	r := newTestServer(t, Deps{Poller: p, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	if rec := doRequest(r, http.MethodPost, "/v1/poll/run", bearerToken(t)); rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	p := &fakePoller{}
	r := newTestServer(t, Deps{Poller: p, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	if rec := doRequest(r, http.MethodPost, "/v1/poll/snapshot", bearerToken(t)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	p.snapErr = errors.New("redis down")
	if rec := doRequest(r, http.MethodPost, "/v1/poll/snapshot", bearerToken(t)); rec.Code != http.StatusBadGateway {
		t.Fatalf("failure status = %d", rec.Code)
	}
}

func TestAssignRoleEndpoint(t *testing.T) {
	a := &fakeApprover{}
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: a, Roles: &fakeProber{}, Store: &fakeConfigStore{}})

	rec := doRequest(r, http.MethodPost, "/v1/applications/app-42/role-assignment", bearerToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if a.lastID != "app-42" {
		t.Errorf("handled id = %q", a.lastID)
	}

	a.err = errors.New("application app-43 not found")
	if rec := doRequest(r, http.MethodPost, "/v1/applications/app-43/role-assignment", bearerToken(t)); rec.Code != http.StatusNotFound {
		t.Errorf("not-found status = %d", rec.Code)
	}
}

func TestDiscordTestConfig(t *testing.T) {
	store := &fakeConfigStore{cfg: &types.DiscordConfig{
		GuildID:   "111111111111111111",
		GuildName: "Viewer Esports",
	}}
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{canManage: true}, Store: store})

	rec := doRequest(r, http.MethodGet, "/v1/discord/config/org-1/test", bearerToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["can_manage_roles"] != true || body["guild_name"] != "Viewer Esports" {
		t.Errorf("body = %v", body)
	}

	store.cfg = nil
	if rec := doRequest(r, http.MethodGet, "/v1/discord/config/org-1/test", bearerToken(t)); rec.Code != http.StatusNotFound {
		t.Errorf("missing config status = %d", rec.Code)
	}
}

func TestOAuthCallbackStoresGuild(t *testing.T) {
	store := &fakeConfigStore{}
	exchanger := &fakeExchanger{tok: &discord.TokenResponse{
		AccessToken: "at",
		Guild: &struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}{ID: "111111111111111111", Name: "Viewer Esports"},
	}}
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, OAuth: exchanger, Store: store})

	rec := doJSON(r, http.MethodPost, "/v1/discord/oauth/callback", bearerToken(t), map[string]string{
		"organization_id": "org-1",
		"code":            "abc",
		"redirect_uri":    "https://viewer.gg/settings/discord",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved configs = %d", len(store.saved))
	}
	saved := store.saved[0]
	if saved.OrganizationID != "org-1" || saved.GuildID != "111111111111111111" || !saved.IsConnected {
		t.Errorf("saved = %+v", saved)
	}
}

func TestOAuthCallbackBotScopeMissing(t *testing.T) {
	exchanger := &fakeExchanger{tok: &discord.TokenResponse{AccessToken: "at"}}
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, OAuth: exchanger, Store: &fakeConfigStore{}})

	rec := doJSON(r, http.MethodPost, "/v1/discord/oauth/callback", bearerToken(t), map[string]string{
		"organization_id": "org-1",
		"code":            "abc",
		"redirect_uri":    "https://viewer.gg/settings/discord",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRoleLogsEndpoint(t *testing.T) {
	store := &fakeConfigStore{logs: []types.DiscordRoleLog{
		{ID: "log-1", Action: "role_assigned", Success: true},
	}}
	r := newTestServer(t, Deps{Poller: &fakePoller{}, Approver: &fakeApprover{}, Roles: &fakeProber{}, Store: store})

	rec := doRequest(r, http.MethodGet, "/v1/tournaments/t-1/role-logs", bearerToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Logs []types.DiscordRoleLog `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Logs) != 1 || body.Logs[0].Action != "role_assigned" {
		t.Errorf("logs = %+v", body.Logs)
	}
}
