package domain

import (
	"math/big"
	"strings"
	"time"
)

// Provider is the off-chain mirror of a provider's wallet, keyed by
// canonical lowercase address (spec.md §3). The claimable amount is
// never read from here — always from the escrow contract.
type Provider struct {
	Address      string
	DisplayName  string
	TotalEarned  *big.Int
	TotalClaimed *big.Int
	CreatedAt    time.Time
}

// CanonicalAddress lowercases an EVM address for use as a map/DB key.
func CanonicalAddress(addr string) string {
	return strings.ToLower(addr)
}

// AccessLog is the append-only settlement record created iff a
// settlement succeeded (spec.md §3).
type AccessLog struct {
	ID              string
	ServiceID       string
	CallerAddress   string
	ProviderAddress string
	Amount          *big.Int
	ProviderRevenue *big.Int
	PlatformFee     *big.Int
	TxHash          string
	SettlementMode  SettlementMode
	CreatedAt       time.Time
	// Reverted is set by the background confirmation watcher when a
	// transaction recorded optimistically (spec.md §5) later turns out
	// to have reverted on-chain; the provider credit is reversed at
	// the same time (ledger.Ledger.ReverseSettlement).
	Reverted bool
}

// SettlementMode distinguishes the processor-routed path (ledger
// credited) from the legacy direct-token path (ledger best-effort,
// spec.md §9 known source ambiguity).
type SettlementMode string

const (
	SettlementModeProcessor SettlementMode = "processor"
	SettlementModeLegacy    SettlementMode = "legacy"
)

// Claim is a provider withdrawal record.
type Claim struct {
	ID              string
	ProviderAddress string
	Amount          *big.Int
	TxHash          string
	Status          ClaimStatus
	CreatedAt       time.Time
}

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimFailed    ClaimStatus = "failed"
)
