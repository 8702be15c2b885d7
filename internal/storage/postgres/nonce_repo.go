package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RelayerNonceRepo reads and writes the last allocated relayer account
// nonce in the relayer_nonces table (SPEC_FULL.md §3.1). Nothing in
// this repository constructs it: relayer.NoncePool seeds itself from
// PendingNonceAt alone and never reads or advances this row.
type RelayerNonceRepo struct {
	pool *pgxpool.Pool
}

func NewRelayerNonceRepo(pool *pgxpool.Pool) *RelayerNonceRepo {
	return &RelayerNonceRepo{pool: pool}
}

// Last returns the last persisted nonce, or (0, false) if none has
// been recorded yet.
func (r *RelayerNonceRepo) Last(ctx context.Context) (uint64, bool, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT last_nonce FROM relayer_nonces WHERE id = 1`).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(n), true, nil
}

// Advance records the highest nonce the relayer has allocated.
func (r *RelayerNonceRepo) Advance(ctx context.Context, nonce uint64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relayer_nonces (id, last_nonce, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET last_nonce = $1, updated_at = now()`, int64(nonce))
	return err
}
