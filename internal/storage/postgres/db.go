// Package postgres implements the gateway's persistence layer on
// jackc/pgx, mirroring services, providers, access logs, and claims
// for cheap listing while the on-chain contracts remain authoritative
// for balances (SPEC_FULL.md §3.1).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kagenti-labs/x402-gateway/config"
)

// NewPool opens a pgx connection pool and verifies connectivity,
// grounded on the VidIsWandering secure-payment-gateway's postgres
// adapter (internal/adapter/storage/postgres/db.go).
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Int32("max_conns", poolCfg.MaxConns).Msg("postgres connection pool established")
	return pool, nil
}
