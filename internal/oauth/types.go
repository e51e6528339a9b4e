// Package oauth provides the token endpoint client for the eBay integration
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by providers
var (
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
)

// Token is the credential obtained from a code exchange or refresh.
// ExpiresAt is always recomputed from the provider-reported expires_in at
// receipt time.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	ObtainedAt   time.Time `json:"obtained_at"`
}

// ExchangeError reports a failed token endpoint call. The client never
// retries these itself; retry policy belongs to the caller, and only for
// 5xx/network failures.
type ExchangeError struct {
	Status      int    // HTTP status, zero for transport failures
	Code        string // Provider error code, e.g. invalid_grant
	Description string
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token exchange failed: %s: %s (status %d)", e.Code, e.Description, e.Status)
	}
	return fmt.Sprintf("token exchange failed: status %d", e.Status)
}

// Temporary reports whether the failure is worth a caller-level retry
func (e *ExchangeError) Temporary() bool {
	return e.Status == 0 || e.Status >= 500
}

// RateLimitedError reports an exchange rejected before any network call
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// Provider defines the token endpoint operations used by the flow
type Provider interface {
	// ExchangeCode exchanges an authorization code and PKCE verifier for
	// tokens. callerKey identifies the caller for rate limiting.
	ExchangeCode(ctx context.Context, callerKey, code, codeVerifier string) (*Token, error)

	// Refresh obtains a new token pair from a refresh token
	Refresh(ctx context.Context, callerKey, refreshToken string) (*Token, error)

	// CheckHealth verifies the provider is accessible
	CheckHealth(ctx context.Context) error
}
