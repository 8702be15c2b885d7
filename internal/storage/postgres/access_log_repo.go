package postgres

import (
	"context"
	"errors"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// AccessLogRepo implements ledger.AccessLogStore.
type AccessLogRepo struct {
	pool *pgxpool.Pool
}

func NewAccessLogRepo(pool *pgxpool.Pool) *AccessLogRepo {
	return &AccessLogRepo{pool: pool}
}

func (r *AccessLogRepo) InsertAccessLog(ctx context.Context, log domain.AccessLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_logs (id, service_id, caller_address, provider_address, amount,
			provider_revenue, platform_fee, tx_hash, settlement_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, log.ServiceID, domain.CanonicalAddress(log.CallerAddress),
		domain.CanonicalAddress(log.ProviderAddress), bigString(log.Amount),
		bigString(log.ProviderRevenue), bigString(log.PlatformFee), log.TxHash,
		string(log.SettlementMode), log.CreatedAt,
	)
	return err
}

// ReconcileReverted marks the access log for txHash reverted and
// returns the row so the caller can undo the provider credit it
// recorded optimistically. The `reverted = false` guard makes this
// idempotent against a watcher firing twice for the same tx; a second
// call returns (nil, nil) rather than double-crediting the reversal.
func (r *AccessLogRepo) ReconcileReverted(ctx context.Context, txHash string) (*domain.AccessLog, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE access_logs SET reverted = true
		WHERE tx_hash = $1 AND reverted = false
		RETURNING id, service_id, caller_address, provider_address, amount::text,
			provider_revenue::text, platform_fee::text, tx_hash, settlement_mode, created_at`,
		txHash)

	var (
		log                            domain.AccessLog
		amountStr, revenueStr, feeStr  string
		settlementMode                 string
	)
	err := row.Scan(&log.ID, &log.ServiceID, &log.CallerAddress, &log.ProviderAddress,
		&amountStr, &revenueStr, &feeStr, &log.TxHash, &settlementMode, &log.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Amount, _ = new(big.Int).SetString(amountStr, 10)
	log.ProviderRevenue, _ = new(big.Int).SetString(revenueStr, 10)
	log.PlatformFee, _ = new(big.Int).SetString(feeStr, 10)
	log.SettlementMode = domain.SettlementMode(settlementMode)
	log.Reverted = true
	return &log, nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
