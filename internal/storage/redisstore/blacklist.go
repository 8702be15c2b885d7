package redisstore

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Blacklist holds addresses the relayer refuses to settle for, e.g.
// after repeated reverted submissions (gas-griefing mitigation,
// spec.md §4.5).
type Blacklist struct {
	client *goredis.Client
	key    string
}

func NewBlacklist(client *goredis.Client) *Blacklist {
	return &Blacklist{client: client, key: "blacklist:payers"}
}

func (b *Blacklist) Add(ctx context.Context, payer string) error {
	return b.client.SAdd(ctx, b.key, payer).Err()
}

func (b *Blacklist) Remove(ctx context.Context, payer string) error {
	return b.client.SRem(ctx, b.key, payer).Err()
}

func (b *Blacklist) IsBlacklisted(ctx context.Context, payer string) (bool, error) {
	return b.client.SIsMember(ctx, b.key, payer).Result()
}
