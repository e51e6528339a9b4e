// Package tokens persists token records per session and keeps them fresh
package tokens

import (
	"context"
	"errors"

	"github.com/snapsell/ebay-auth/internal/oauth"
)

var (
	// ErrNoToken indicates no token record exists for the key
	ErrNoToken = errors.New("no token for key")

	// ErrAuthRequired indicates no valid credential can be produced and the
	// authorization flow must be re-run
	ErrAuthRequired = errors.New("authorization required")
)

// Store defines token record storage keyed by session
type Store interface {
	// Get retrieves the token record for key, or ErrNoToken
	Get(ctx context.Context, key string) (*oauth.Token, error)

	// Put replaces the token record for key wholesale
	Put(ctx context.Context, key string, token *oauth.Token) error

	// Clear removes the token record for key; absent keys are not an error
	Clear(ctx context.Context, key string) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
