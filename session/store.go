package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an upload session stays resolvable after creation.
const DefaultTTL = 10 * time.Minute

// Store maps a client-visible session token to the upstream upload URL.
// Implementations must treat expired entries as absent.
type Store interface {
	Put(ctx context.Context, token, location string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, bool, error)
}

// NewToken returns a fresh random session token.
func NewToken() string {
	return uuid.NewString()
}
