package authflow

import "time"

// DefaultScopes is the scope catalog requested when configuration does not
// override it. These cover the listing workflow: inventory writes, account
// policies, and order fulfillment.
var DefaultScopes = []string{
	"https://api.ebay.com/oauth/api_scope",
	"https://api.ebay.com/oauth/api_scope/sell.inventory",
	"https://api.ebay.com/oauth/api_scope/sell.account",
	"https://api.ebay.com/oauth/api_scope/sell.fulfillment",
}

// Attempt is one in-flight authorization. It is created when an
// authorization URL is issued and consumed exactly once by the callback, or
// garbage-collected after expiry.
type Attempt struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	ReturnTo     string    `json:"return_to"`
}

// Authorization is the result of beginning an attempt: the URL to navigate
// the browser to, and the state bound to it.
type Authorization struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

// Callback carries the raw query parameters from the provider redirect
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Status is the terminal status of a callback invocation
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FailureReason classifies a failed callback
type FailureReason string

const (
	// FailureProviderDenied means the user declined consent at the provider
	FailureProviderDenied FailureReason = "provider_denied"

	// FailureInvalidState means the state was missing, forged, already
	// consumed, or expired; treated as a potential CSRF/replay
	FailureInvalidState FailureReason = "invalid_state"

	// FailureMalformedCallback means the redirect carried neither a code
	// nor an error parameter
	FailureMalformedCallback FailureReason = "malformed_callback"

	// FailureExchangeError means the code-for-token exchange failed
	FailureExchangeError FailureReason = "exchange_error"
)

// Result is the outcome of handling one callback
type Result struct {
	Status   Status
	ReturnTo string        // Set when Status is StatusCompleted
	Reason   FailureReason // Set when Status is StatusFailed
	Err      error         // Underlying cause, when one exists
}

// Completed reports whether the callback finished the flow
func (r *Result) Completed() bool {
	return r.Status == StatusCompleted
}
