// Package redisstore implements the optimistic-settlement anti-abuse
// layer (SPEC_FULL.md §3.2): per-payer rate limiting, a misbehaving-
// payer blacklist, and a short-TTL idempotency cache, all consulted
// only when optimistic_settlement=true since that is the policy that
// lets a payer get a fast "submitted" response before confirmation.
//
// Grounded on VidIsWandering-secure-payment-gateway's
// internal/adapter/storage/redis package (ratelimit_store.go,
// nonce_store.go's SetNX pattern).
package redisstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-payer counter.
type RateLimiter struct {
	client *goredis.Client
	prefix string
}

func NewRateLimiter(client *goredis.Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "ratelimit:payer:"}
}

// Result reports whether the caller may proceed and how many calls
// remain in the current window.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   int64
}

// Allow increments the payer's counter for the current window and
// reports whether limit has been exceeded.
func (s *RateLimiter) Allow(ctx context.Context, payer string, limit int64, window time.Duration) (*Result, error) {
	windowID := time.Now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("%s%s:%d", s.prefix, payer, windowID)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit incr: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window+time.Second)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * int64(window.Seconds()),
	}, nil
}
