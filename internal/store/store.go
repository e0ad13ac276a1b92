package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value/set/sorted-set contract the engines run on.
// There are no multi-key transactions: callers achieve consistency
// through read-modify-replace sequences, and concurrent writers to the
// same key race with last-write-wins.
type Store interface {
	// String values.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error

	// Unordered string sets.
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	// Score-ordered collections (scores are timestamps in millis).
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) error
	ZRangeAll(ctx context.Context, key string) ([]string, error)
}
