package middleware

import (
	"context"
	"time"

	"github.com/kagenti-labs/x402-gateway/internal/storage/redisstore"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

const rateLimitWindow = time.Minute

// PayerGate enforces the optimistic-settlement anti-abuse checks from
// spec.md §5: a blacklisted payer is refused outright, and everyone
// else is subject to a per-payer, per-window request cap. Unlike
// RequestLogger/Recovery this isn't chained as gin middleware, since
// the payer address isn't known until the signature has been decoded
// mid-handler — it's called directly once that address is in hand.
//
// Grounded on VidIsWandering's RateLimiter gin middleware, adapted
// from a pre-handler chain into a callable gate since this gateway's
// identity (the signer) only exists after payload decode, not before.
func PayerGate(ctx context.Context, limiter *redisstore.RateLimiter, blacklist *redisstore.Blacklist, payer string, requestsPerMinute int64) error {
	if blacklist != nil {
		blocked, err := blacklist.IsBlacklisted(ctx, payer)
		if err != nil {
			return apperror.Internal(err)
		}
		if blocked {
			return apperror.New("PAYER_BLOCKED", "this payer address has been blocked from optimistic settlement", 403)
		}
	}
	if limiter == nil {
		return nil
	}
	result, err := limiter.Allow(ctx, payer, requestsPerMinute, rateLimitWindow)
	if err != nil {
		return apperror.Internal(err)
	}
	if !result.Allowed {
		return apperror.New("RATE_LIMITED", "too many requests from this payer address", 429)
	}
	return nil
}
