// Package ledger implements the ledger mirror & revenue API
// (spec.md §4.7): an off-chain mirror of settlement history for
// cheap listing, with the escrow contract always treated as the
// authoritative source for claimable balances.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// AccessLogStore persists the append-only settlement record.
type AccessLogStore interface {
	InsertAccessLog(ctx context.Context, log domain.AccessLog) error
	ReconcileReverted(ctx context.Context, txHash string) (*domain.AccessLog, error)
}

// ProviderStore maintains the off-chain provider mirror.
type ProviderStore interface {
	IncrementEarned(ctx context.Context, address string, amount *big.Int) error
	DecrementEarned(ctx context.Context, address string, amount *big.Int) error
	Get(ctx context.Context, address string) (*domain.Provider, error)
}

// EscrowBalanceReader reads the authoritative on-chain claimable
// balance; satisfied by *contracts.EscrowClient.
type EscrowBalanceReader interface {
	ProviderBalance(ctx context.Context, provider common.Address) (*big.Int, error)
}

// Ledger composes the off-chain mirror with the on-chain source of
// truth for revenue reads.
type Ledger struct {
	Logs      AccessLogStore
	Providers ProviderStore
	Escrow    EscrowBalanceReader
}

// Split divides amount into the provider's revenue share and the
// platform fee, using basis points out of 10000 (spec.md §4.6 —
// keeping the fee as an integer avoids floating point in the
// contract and in this mirror).
func Split(amount *big.Int, feeBasisPoints *big.Int) (providerRevenue, platformFee *big.Int) {
	fee := new(big.Int).Mul(amount, feeBasisPoints)
	fee.Div(fee, big.NewInt(10_000))
	revenue := new(big.Int).Sub(amount, fee)
	return revenue, fee
}

// RecordSettlement appends the access log and credits the provider
// mirror. Called only after a settlement reaches StateConfirmed (or,
// under the optimistic policy, StateSubmitted) — never on revert or
// timeout, since a failed settlement moved no funds (spec.md §4.7).
func (l *Ledger) RecordSettlement(ctx context.Context, log domain.AccessLog) error {
	if err := l.Logs.InsertAccessLog(ctx, log); err != nil {
		return err
	}
	if log.SettlementMode == domain.SettlementModeLegacy {
		// Legacy path moves funds straight to PayTo, bypassing escrow;
		// the mirror still records the access for auditing, but there
		// is no provider balance to credit (spec.md §9).
		return nil
	}
	return l.Providers.IncrementEarned(ctx, domain.CanonicalAddress(log.ProviderAddress), log.ProviderRevenue)
}

// ReverseSettlement undoes the provider credit for a transaction the
// background confirmation watcher (internal/relayer) discovered had
// reverted after already being recorded under the optimistic policy
// (spec.md §5). Returns nil with no effect if txHash has no matching
// log or was already reconciled, so a watcher racing a duplicate
// receipt poll never double-reverses.
func (l *Ledger) ReverseSettlement(ctx context.Context, txHash string) error {
	log, err := l.Logs.ReconcileReverted(ctx, txHash)
	if err != nil {
		return err
	}
	if log == nil || log.SettlementMode == domain.SettlementModeLegacy {
		return nil
	}
	return l.Providers.DecrementEarned(ctx, domain.CanonicalAddress(log.ProviderAddress), log.ProviderRevenue)
}

// WalletRevenue returns the claimable balance straight from escrow,
// bypassing the DB mirror entirely (spec.md §4.7 GET /revenue/wallet).
func (l *Ledger) WalletRevenue(ctx context.Context, address string) (*big.Int, error) {
	return l.Escrow.ProviderBalance(ctx, common.HexToAddress(address))
}

// RevenueSummary merges the off-chain mirror with the on-chain
// override for a provider's revenue page.
type RevenueSummary struct {
	Address        string
	TotalEarned    *big.Int
	TotalClaimed   *big.Int
	ClaimableOnChain *big.Int
}

// ProviderRevenue merges the DB totals (earned/claimed history) with
// the live on-chain claimable balance, which always wins over any
// mirror drift (spec.md §4.7, §9).
func (l *Ledger) ProviderRevenue(ctx context.Context, providerAddress string) (*RevenueSummary, error) {
	address := domain.CanonicalAddress(providerAddress)
	provider, err := l.Providers.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	onChain, err := l.Escrow.ProviderBalance(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	summary := &RevenueSummary{
		Address:          address,
		ClaimableOnChain: onChain,
	}
	if provider != nil {
		summary.TotalEarned = provider.TotalEarned
		summary.TotalClaimed = provider.TotalClaimed
	} else {
		summary.TotalEarned = big.NewInt(0)
		summary.TotalClaimed = big.NewInt(0)
	}
	return summary, nil
}
