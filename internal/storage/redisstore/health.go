package redisstore

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck verifies the client can still reach Redis, grounded on
// VidIsWandering-secure-payment-gateway's
// internal/adapter/storage/redis/health.go.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string {
	return "redis"
}
