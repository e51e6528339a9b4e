package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snapsell/ebay-auth/internal/ratelimit"
)

// defaultTimeout bounds every token endpoint call so a hosted deployment
// never parks a worker on a hung exchange
const defaultTimeout = 10 * time.Second

// EbayProvider implements Provider against the eBay identity token endpoint
type EbayProvider struct {
	client       *http.Client
	limiter      ratelimit.Limiter
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	now          func() time.Time
}

// EbayConfig holds the settings needed to call the token endpoint
type EbayConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
}

// NewEbayProvider creates a provider for the given environment. All token
// endpoint calls pass through limiter before touching the network.
func NewEbayProvider(cfg EbayConfig, limiter ratelimit.Limiter) (*EbayProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if _, err := url.Parse(cfg.TokenURL); err != nil || cfg.TokenURL == "" {
		return nil, fmt.Errorf("invalid token URL %q", cfg.TokenURL)
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	return &EbayProvider{
		client:       &http.Client{Timeout: defaultTimeout},
		limiter:      limiter,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		tokenURL:     cfg.TokenURL,
		now:          time.Now,
	}, nil
}

// WithClock overrides the provider's time source for tests
func (p *EbayProvider) WithClock(now func() time.Time) *EbayProvider {
	p.now = now
	return p
}

// ExchangeCode exchanges an authorization code for tokens, binding the
// request to the attempt's PKCE verifier
func (p *EbayProvider) ExchangeCode(ctx context.Context, callerKey, code, codeVerifier string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.redirectURI},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"code_verifier": {codeVerifier},
	}
	return p.post(ctx, callerKey, data)
}

// Refresh obtains a new token pair from a refresh token
func (p *EbayProvider) Refresh(ctx context.Context, callerKey, refreshToken string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	return p.post(ctx, callerKey, data)
}

func (p *EbayProvider) post(ctx context.Context, callerKey string, data url.Values) (*Token, error) {
	decision, err := p.limiter.TryAcquire(ctx, callerKey)
	if err != nil {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}
	if !decision.Allowed {
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ExchangeError{Description: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Status: resp.StatusCode, Description: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		// Body may not be JSON for gateway errors; keep the status either way
		_ = json.Unmarshal(body, &errResp)
		exchErr := &ExchangeError{
			Status:      resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
		if errResp.Error == "invalid_grant" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, exchErr)
		}
		return nil, exchErr
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &ExchangeError{Status: resp.StatusCode, Description: fmt.Sprintf("parsing response: %v", err)}
	}
	if tokenResp.AccessToken == "" {
		return nil, &ExchangeError{Status: resp.StatusCode, Description: "response missing access_token"}
	}

	now := p.now()
	return &Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		Scope:        tokenResp.Scope,
		ExpiresAt:    now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		ObtainedAt:   now,
	}, nil
}

// CheckHealth verifies the token endpoint host is reachable
func (p *EbayProvider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("creating health check request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrProviderUnavailable
	}
	return nil
}
