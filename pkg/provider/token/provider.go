// Package token defines the Provider interface for calendar access tokens.
//
// Token acquisition, refresh, and storage are external concerns. The skald
// core only ever asks "give me a currently valid access token". A provider
// that cannot produce one returns [ErrUnavailable]; the assistant maps that to
// a user-facing "connect your calendar" reply and never retries.
package token

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no valid access token can be produced.
var ErrUnavailable = errors.New("token: no valid access token available")

// Provider supplies the current calendar access token.
//
// Implementations must be safe for concurrent use. A blocking refresh inside
// Token is acceptable; callers pass a context so the refresh respects
// cancellation.
type Provider interface {
	// Token returns a currently valid access token, refreshing if necessary.
	// Returns [ErrUnavailable] (possibly wrapped) when no token can be obtained.
	Token(ctx context.Context) (string, error)
}
