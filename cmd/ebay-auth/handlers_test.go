package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/snapsell/ebay-auth/internal/authflow"
	"github.com/snapsell/ebay-auth/internal/csrf"
	"github.com/snapsell/ebay-auth/internal/oauth"
	"github.com/snapsell/ebay-auth/internal/tokens"
)

// fakeProvider implements oauth.Provider for handler tests
type fakeProvider struct {
	exchangeErr error
	refreshErr  error
	token       *oauth.Token
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, callerKey, code, codeVerifier string) (*oauth.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	copied := *p.token
	return &copied, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, callerKey, refreshToken string) (*oauth.Token, error) {
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	copied := *p.token
	return &copied, nil
}

func (p *fakeProvider) CheckHealth(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) (*server, *fakeProvider) {
	t.Helper()

	provider := &fakeProvider{token: &oauth.Token{
		AccessToken:  "at-1",
		TokenType:    "Bearer",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(2 * time.Hour),
		ObtainedAt:   time.Now(),
	}}

	oc := &oauth2.Config{
		ClientID:    "client-1",
		RedirectURL: "http://localhost:8080/auth/callback",
		Scopes:      authflow.DefaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://auth.sandbox.ebay.com/oauth2/authorize",
			TokenURL: "https://api.sandbox.ebay.com/identity/v1/oauth2/token",
		},
	}

	manager := tokens.NewManager(tokens.NewMemoryStore(), provider)
	flow := authflow.NewFlow(oc,
		csrf.NewSigner([]byte("test-secret-key-32-bytes-exactly!")),
		authflow.NewMemoryStateStore(),
		manager,
		provider,
	)

	cfg := Config{DefaultReturnTo: "/"}
	return newServer(cfg, flow, manager), provider
}

// login drives /auth/login and returns the provider state and session cookie
func login(t *testing.T, srv *server, returnTo string) (state string, session *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/auth/login?return_to="+url.QueryEscape(returnTo), nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("login status = %d, want 302", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	state = loc.Query().Get("state")
	if state == "" {
		t.Fatal("login redirect carries no state")
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookie {
			session = cookie
		}
	}
	if session == nil {
		t.Fatal("login issued no session cookie")
	}
	return state, session
}

func TestHandleLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?return_to=/items", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if loc.Host != "auth.sandbox.ebay.com" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	q := loc.Query()
	for _, param := range []string{"client_id", "state", "code_challenge", "scope"} {
		if q.Get(param) == "" {
			t.Errorf("authorization URL missing %s", param)
		}
	}
}

func TestHandleCallback(t *testing.T) {
	t.Run("success_redirects_to_target", func(t *testing.T) {
		srv, _ := newTestServer(t)
		state, session := login(t, srv, "/items/42")

		req := httptest.NewRequest(http.MethodGet,
			"/auth/callback?code=code-1&state="+url.QueryEscape(state), nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/items/42" {
			t.Errorf("Location = %q, want /items/42", loc)
		}
	})

	t.Run("invalid_state_redirects_with_error", func(t *testing.T) {
		srv, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=forged", nil)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		loc, _ := url.Parse(rec.Header().Get("Location"))
		if got := loc.Query().Get("auth_error"); got != string(authflow.FailureInvalidState) {
			t.Errorf("auth_error = %q, want invalid_state", got)
		}
	})

	t.Run("denied_redirects_with_reason", func(t *testing.T) {
		srv, _ := newTestServer(t)
		state, session := login(t, srv, "/")

		req := httptest.NewRequest(http.MethodGet,
			"/auth/callback?error=access_denied&state="+url.QueryEscape(state), nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		loc, _ := url.Parse(rec.Header().Get("Location"))
		if got := loc.Query().Get("auth_error"); got != string(authflow.FailureProviderDenied) {
			t.Errorf("auth_error = %q, want provider_denied", got)
		}
	})
}

func TestHandleToken(t *testing.T) {
	t.Run("returns_token_after_callback", func(t *testing.T) {
		srv, _ := newTestServer(t)
		state, session := login(t, srv, "/")

		req := httptest.NewRequest(http.MethodGet,
			"/auth/callback?code=code-1&state="+url.QueryEscape(state), nil)
		req.AddCookie(session)
		srv.router.ServeHTTP(httptest.NewRecorder(), req)

		req = httptest.NewRequest(http.MethodGet, "/auth/token", nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.AccessToken != "at-1" || resp.TokenType != "Bearer" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("no_session_token", func(t *testing.T) {
		srv, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		var resp map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp["error"] != "auth_required" {
			t.Errorf("error = %q, want auth_required", resp["error"])
		}
	})

	t.Run("rate_limited_refresh_sets_retry_after", func(t *testing.T) {
		srv, provider := newTestServer(t)
		state, session := login(t, srv, "/")

		req := httptest.NewRequest(http.MethodGet,
			"/auth/callback?code=code-1&state="+url.QueryEscape(state), nil)
		req.AddCookie(session)
		srv.router.ServeHTTP(httptest.NewRecorder(), req)

		// Force the stored token near expiry and make refresh rate-limited
		if err := srv.tokens.Put(context.Background(), session.Value, &oauth.Token{
			AccessToken:  "at-stale",
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(-time.Second),
		}); err != nil {
			t.Fatal(err)
		}
		provider.refreshErr = &oauth.RateLimitedError{RetryAfter: 30 * time.Second}

		req = httptest.NewRequest(http.MethodGet, "/auth/token", nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "30" {
			t.Errorf("Retry-After = %q, want 30", got)
		}

		// The record survives a rate-limited refresh
		if _, err := srv.tokens.GetValid(context.Background(), session.Value); err == nil {
			t.Error("expected error while still rate limited")
		}
	})
}

func TestHandleLogout(t *testing.T) {
	srv, _ := newTestServer(t)
	state, session := login(t, srv, "/")

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=code-1&state="+url.QueryEscape(state), nil)
	req.AddCookie(session)
	srv.router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("token status after logout = %d, want 401", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}
