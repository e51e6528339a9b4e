// Package authflow implements the OAuth2 authorization-code-with-PKCE flow:
// building authorization requests, tracking in-flight attempts, and driving
// callbacks through validation and code exchange.
package authflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/snapsell/ebay-auth/internal/csrf"
	"github.com/snapsell/ebay-auth/internal/oauth"
	"github.com/snapsell/ebay-auth/internal/tokens"
	"github.com/snapsell/ebay-auth/internal/validation"
)

// DefaultAttemptTTL bounds how long an issued authorization URL stays
// redeemable
const DefaultAttemptTTL = 10 * time.Minute

// Flow manages the authorization code grant with PKCE
type Flow struct {
	oauth           *oauth2.Config
	signer          *csrf.Signer
	states          StateStore
	tokens          *tokens.Manager
	provider        oauth.Provider
	attemptTTL      time.Duration
	defaultReturnTo string
	now             func() time.Time
	sink            Sink
}

// NewFlow creates a flow manager with the provided options
func NewFlow(oc *oauth2.Config, signer *csrf.Signer, states StateStore, manager *tokens.Manager, provider oauth.Provider, opts ...Option) *Flow {
	f := &Flow{
		oauth:           oc,
		signer:          signer,
		states:          states,
		tokens:          manager,
		provider:        provider,
		attemptTTL:      DefaultAttemptTTL,
		defaultReturnTo: "/",
		now:             time.Now,
		sink:            NopSink{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Begin starts a new authorization attempt. It generates a PKCE verifier and
// a signed state token from independent entropy, stores the attempt, and
// returns the provider authorization URL for the caller to navigate to.
// Begin itself performs no navigation and no network calls.
func (f *Flow) Begin(ctx context.Context, returnTo string) (*Authorization, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := f.signer.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	now := f.now()
	attempt := &Attempt{
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(f.attemptTTL),
		ReturnTo:     validation.NormalizeReturnTarget(returnTo, f.defaultReturnTo),
	}
	if err := f.states.Put(ctx, attempt); err != nil {
		return nil, fmt.Errorf("storing authorization attempt: %w", err)
	}

	authURL := f.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	return &Authorization{
		URL:       authURL,
		State:     state,
		ExpiresAt: attempt.ExpiresAt,
	}, nil
}

// HandleCallback drives one provider redirect through the state machine
// Received -> Validating -> Exchanging -> Completed | Failed. sessionKey
// keys the resulting token record; callerKey keys the exchange rate limit.
// Each invocation performs at most one state-store take, one exchange call,
// and one token write.
func (f *Flow) HandleCallback(ctx context.Context, sessionKey, callerKey string, cb Callback) *Result {
	hadState := cb.State != ""
	f.emit(ctx, Event{Stage: StageReceived, HadState: hadState})
	f.emit(ctx, Event{Stage: StageValidating, HadState: hadState})

	if cb.Error != "" {
		return f.fail(ctx, hadState, FailureProviderDenied,
			fmt.Errorf("provider returned %s: %s", cb.Error, cb.ErrorDescription))
	}

	// Reject forged tokens before touching the store
	if err := f.signer.Verify(cb.State); err != nil {
		return f.fail(ctx, hadState, FailureInvalidState, err)
	}

	attempt, err := f.states.Take(ctx, cb.State)
	if err != nil {
		return f.fail(ctx, hadState, FailureInvalidState, err)
	}

	if cb.Code == "" {
		return f.fail(ctx, hadState, FailureMalformedCallback,
			fmt.Errorf("callback carried neither code nor error"))
	}

	f.emit(ctx, Event{Stage: StageExchanging, HadState: hadState})

	token, err := f.provider.ExchangeCode(ctx, callerKey, cb.Code, attempt.CodeVerifier)
	if err != nil {
		return f.fail(ctx, hadState, FailureExchangeError, err)
	}

	if err := f.tokens.Put(ctx, sessionKey, token); err != nil {
		return f.fail(ctx, hadState, FailureExchangeError,
			fmt.Errorf("saving token record: %w", err))
	}

	f.emit(ctx, Event{Stage: StageCompleted, HadState: hadState})
	return &Result{
		Status:   StatusCompleted,
		ReturnTo: attempt.ReturnTo,
	}
}

// CheckHealth verifies the flow's storage backends are healthy
func (f *Flow) CheckHealth(ctx context.Context) error {
	if err := f.states.CheckHealth(ctx); err != nil {
		return err
	}
	return f.tokens.CheckHealth(ctx)
}

// SweepExpired removes expired attempts from the state store
func (f *Flow) SweepExpired(ctx context.Context) (int, error) {
	return f.states.SweepExpired(ctx)
}

func (f *Flow) fail(ctx context.Context, hadState bool, reason FailureReason, err error) *Result {
	f.emit(ctx, Event{Stage: StageFailed, Reason: reason, HadState: hadState, Err: err})
	return &Result{Status: StatusFailed, Reason: reason, Err: err}
}

func (f *Flow) emit(ctx context.Context, event Event) {
	f.sink.Emit(ctx, event)
}
