package postgres

import (
	"context"
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// ProviderRepo mirrors provider earnings for the revenue API
// (SPEC_FULL.md §3.1); claimable balance always comes from escrow.
type ProviderRepo struct {
	pool *pgxpool.Pool
}

func NewProviderRepo(pool *pgxpool.Pool) *ProviderRepo {
	return &ProviderRepo{pool: pool}
}

func (r *ProviderRepo) Get(ctx context.Context, address string) (*domain.Provider, error) {
	address = domain.CanonicalAddress(address)
	row := r.pool.QueryRow(ctx, `
		SELECT address, display_name, total_earned::text, total_claimed::text, created_at
		FROM providers WHERE address = $1`, address)

	var p domain.Provider
	var earnedStr, claimedStr string
	err := row.Scan(&p.Address, &p.DisplayName, &earnedStr, &claimedStr, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.TotalEarned, _ = new(big.Int).SetString(earnedStr, 10)
	p.TotalClaimed, _ = new(big.Int).SetString(claimedStr, 10)
	return &p, nil
}

// IncrementEarned upserts a provider row and adds amount to its
// running total, implementing ledger.ProviderStore.
func (r *ProviderRepo) IncrementEarned(ctx context.Context, address string, amount *big.Int) error {
	address = domain.CanonicalAddress(address)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (address, total_earned, total_claimed, created_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (address) DO UPDATE SET total_earned = providers.total_earned + $2`,
		address, amount.String())
	return err
}

// IncrementClaimed records a successful withdrawal against the mirror.
func (r *ProviderRepo) IncrementClaimed(ctx context.Context, address string, amount *big.Int) error {
	address = domain.CanonicalAddress(address)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (address, total_earned, total_claimed, created_at)
		VALUES ($1, 0, $2, now())
		ON CONFLICT (address) DO UPDATE SET total_claimed = providers.total_claimed + $2`,
		address, amount.String())
	return err
}

// DecrementEarned undoes an IncrementEarned credit, used when the
// background confirmation watcher finds that a transaction recorded
// optimistically actually reverted on-chain (spec.md §5).
func (r *ProviderRepo) DecrementEarned(ctx context.Context, address string, amount *big.Int) error {
	address = domain.CanonicalAddress(address)
	_, err := r.pool.Exec(ctx, `
		UPDATE providers SET total_earned = total_earned - $2 WHERE address = $1`,
		address, amount.String())
	return err
}

// ListAddresses returns every provider with a mirror row, used by
// gatewayctl's reconcile-ledger sweep when no single --provider is given.
func (r *ProviderRepo) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT address FROM providers ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}
