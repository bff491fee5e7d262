package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireGuard sets key if absent and returns an ownership token; ok is
	// false when another holder already owns it.
	AcquireGuard(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseGuard deletes key only if it is still owned by token.
	ReleaseGuard(ctx context.Context, key, token string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key whose request did not succeed.
	ReleaseIdempotency(ctx context.Context, key string) error
}
