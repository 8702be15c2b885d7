package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthCheck verifies the pool can still reach Postgres, grounded on
// VidIsWandering-secure-payment-gateway's
// internal/adapter/storage/postgres/health.go.
type HealthCheck struct {
	pool *pgxpool.Pool
}

func NewHealthCheck(pool *pgxpool.Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
