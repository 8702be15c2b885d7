package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when a retry of the same envelope arrives
// while its key is held: the original attempt is still outstanding, or
// it completed within the cache TTL.
var ErrInFlight = errors.New("identical payment already in flight")

// IdempotencyCache de-duplicates retries of the exact same tunnel-mode
// envelope while its settlement is outstanding, complementing (never
// replacing) the on-chain nonce check: without it, a client's naive
// HTTP retry before confirmation would resubmit the same authorization
// and race its own first attempt (SPEC_FULL.md §3.2).
type IdempotencyCache struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewIdempotencyCache(client *goredis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{client: client, ttl: ttl, prefix: "idem:"}
}

// EnvelopeKey hashes the raw header value into a cache key.
func EnvelopeKey(headerValue string) string {
	sum := sha256.Sum256([]byte(headerValue))
	return hex.EncodeToString(sum[:])
}

// Reserve atomically claims key for the duration of one settlement
// attempt, returning ErrInFlight if another attempt already holds it.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string) error {
	ok, err := c.client.SetNX(ctx, c.prefix+key, "pending", c.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	return nil
}

// Complete overwrites the reservation with the settlement outcome for
// the cache TTL. The key stays held, so Reserve keeps returning
// ErrInFlight for a retry of the same envelope; Lookup reads the
// stored outcome back, but the gateway handler does not call it.
func (c *IdempotencyCache) Complete(ctx context.Context, key string, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, body, c.ttl).Err()
}

// Lookup returns the cached result bytes for key, if any.
func (c *IdempotencyCache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == "pending" {
		return nil, false, nil
	}
	return val, true, nil
}
