// Package guard defines the shared key-value store capability.
package guard

import (
	"context"
	"strconv"
	"time"
)

// KVStore is the shared counter store. Values are strings; every write
// carries a TTL. The store may be eventually consistent; no transactions
// are assumed and counter increments are independent read-then-write
// pairs (see Evaluator).
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Healthy(ctx context.Context) bool
}

// readCounter reads an integer counter, normalizing absence to zero.
// Unparseable values also read as zero so a corrupt record self-heals
// on the next write instead of wedging the key.
func readCounter(ctx context.Context, store KVStore, key string) (int64, error) {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return parsed, nil
}

func writeCounter(ctx context.Context, store KVStore, key string, value int64, ttl time.Duration) error {
	return store.Put(ctx, key, strconv.FormatInt(value, 10), ttl)
}
