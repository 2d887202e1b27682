package auth

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)

// SessionStore holds issued admin tokens and their expiry. The default
// store is process memory, which a restart wipes clean; the redis store
// is for deployments with more than one service process.
type SessionStore interface {
	Create(ctx context.Context, token string, expiresAt time.Time) error
	// ExpiresAt returns ErrSessionNotFound for unknown tokens
	ExpiresAt(ctx context.Context, token string) (time.Time, error)
	// Delete reports whether the token was present
	Delete(ctx context.Context, token string) (bool, error)
	Tokens(ctx context.Context) ([]string, error)
}
