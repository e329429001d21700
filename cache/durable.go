package cache

import (
	"context"
	"regexp"
	"time"
)

// DurableTier is the persistent second tier behind the memory store.
// Values are opaque; tags are indexed so DeleteByTag can find them.
type DurableTier interface {
	// Name identifies the tier in logs and health output
	Name() string

	// Get returns found=false for a missing or expired key
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (ttl <= 0 means no expiry) and indexes its tags
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error

	// Delete reports whether a live key was removed
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteByTag removes every key carrying tag
	DeleteByTag(ctx context.Context, tag string) (int, error)

	// DeleteMatching removes every key matching re
	DeleteMatching(ctx context.Context, re *regexp.Regexp) (int, error)

	Close() error
}

// Pinger is implemented by tiers that can check their backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExpiryPurger is implemented by tiers that keep expired rows until purged
type ExpiryPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
