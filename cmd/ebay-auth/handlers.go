// Package main implements the eBay OAuth token lifecycle server
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/snapsell/ebay-auth/internal/authflow"
	"github.com/snapsell/ebay-auth/internal/oauth"
	"github.com/snapsell/ebay-auth/internal/tokens"
)

// Health check handler
func (s *server) handleHealth() http.HandlerFunc {
	type healthResponse struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Version: Version,
		}

		if err := s.checkHealth(r.Context()); err != nil {
			resp.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		writeJSON(w, resp)
	}
}

// Login handler: begins an authorization attempt and sends the browser to
// the provider
func (s *server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessionKey(w, r)

		auth, err := s.flow.Begin(r.Context(), r.URL.Query().Get("return_to"))
		if err != nil {
			http.Error(w, "unable to start sign-in", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, auth.URL, http.StatusFound)
	}
}

// Callback handler: the configured redirect URI. Drives the state machine
// and bounces the browser back to the app.
func (s *server) handleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cb := authflow.Callback{
			Code:             q.Get("code"),
			State:            q.Get("state"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
		}

		result := s.flow.HandleCallback(r.Context(), s.sessionKey(w, r), callerKey(r), cb)
		if result.Completed() {
			http.Redirect(w, r, result.ReturnTo, http.StatusFound)
			return
		}

		// The reason distinguishes "you declined" from "sign-in failed" on
		// the app side; details stay in the logs
		target := s.cfg.DefaultReturnTo + "?" + url.Values{
			"auth_error": {string(result.Reason)},
		}.Encode()
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Token handler: returns a valid bearer token for the session, refreshing
// transparently when near expiry
func (s *server) handleToken() http.HandlerFunc {
	type tokenResponse struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		ExpiresAt   time.Time `json:"expires_at"`
		Scope       string    `json:"scope,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.tokens.GetValid(r.Context(), s.sessionKey(w, r))
		if err != nil {
			var rateErr *oauth.RateLimitedError
			switch {
			case errors.Is(err, tokens.ErrAuthRequired):
				writeError(w, http.StatusUnauthorized, "auth_required")
			case errors.As(err, &rateErr):
				w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate_limited")
			default:
				writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable")
			}
			return
		}

		writeJSON(w, tokenResponse{
			AccessToken: token.AccessToken,
			TokenType:   token.TokenType,
			ExpiresAt:   token.ExpiresAt,
			Scope:       token.Scope,
		})
	}
}

// Logout handler: discards the session's token record
func (s *server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tokens.Clear(r.Context(), s.sessionKey(w, r)); err != nil {
			writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
