package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// ClaimRepo mirrors provider withdrawal requests (spec.md §3, §4.6).
type ClaimRepo struct {
	pool *pgxpool.Pool
}

func NewClaimRepo(pool *pgxpool.Pool) *ClaimRepo {
	return &ClaimRepo{pool: pool}
}

func (r *ClaimRepo) Create(ctx context.Context, c *domain.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO claims (id, provider_address, amount, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, domain.CanonicalAddress(c.ProviderAddress), bigString(c.Amount),
		nullableString(c.TxHash), string(c.Status), c.CreatedAt,
	)
	return err
}

func (r *ClaimRepo) UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, txHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE claims SET status = $2, tx_hash = $3 WHERE id = $1`,
		id, string(status), nullableString(txHash))
	return err
}
