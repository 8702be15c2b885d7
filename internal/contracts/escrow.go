package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// EscrowClient binds to the Escrow contract: holds provider balances,
// splits the platform fee, and exposes claim/withdraw (spec.md §4.6).
type EscrowClient struct {
	*Client
}

func NewEscrowClient(backend Backend, address common.Address) (*EscrowClient, error) {
	c, err := NewClient(backend, address, escrowABI)
	if err != nil {
		return nil, err
	}
	return &EscrowClient{c}, nil
}

// ProviderBalance reads escrow.providerBalances(provider) — the
// authoritative claimable amount, never the off-chain mirror
// (spec.md §4.7).
func (c *EscrowClient) ProviderBalance(ctx context.Context, provider common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := c.Call(ctx, &balance, "providerBalances", provider); err != nil {
		return nil, err
	}
	return balance, nil
}

// PlatformFeeBasisPoints reads the on-chain fee mirror.
func (c *EscrowClient) PlatformFeeBasisPoints(ctx context.Context) (*big.Int, error) {
	var bps *big.Int
	if err := c.Call(ctx, &bps, "platformFeeBasisPoints"); err != nil {
		return nil, err
	}
	return bps, nil
}

// Withdraw is called by the relayer (owner-or-relayer role) on a
// provider's behalf — the operation POST /claim uses, per spec.md §9
// (distinct from the provider-initiated, provider-gas-paying claim()).
func (c *EscrowClient) Withdraw(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, provider common.Address, amount *big.Int) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "withdraw", provider, amount)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}
