package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// TokenClient binds to the ERC-20/EIP-3009 token directly, used only
// by the legacy settlement path (spec.md §4.5, §9): the preferred
// path never calls the token directly, it goes through
// PaymentProcessor so the escrow split happens atomically.
type TokenClient struct {
	*Client
}

func NewTokenClient(backend Backend, address common.Address) (*TokenClient, error) {
	c, err := NewClient(backend, address, tokenABI)
	if err != nil {
		return nil, err
	}
	return &TokenClient{c}, nil
}

// Name reads the EIP-712 domain name used in the signing schema
// (spec.md §6).
func (c *TokenClient) Name(ctx context.Context) (string, error) {
	var name string
	if err := c.Call(ctx, &name, "name"); err != nil {
		return "", err
	}
	return name, nil
}

func (c *TokenClient) Symbol(ctx context.Context) (string, error) {
	var symbol string
	if err := c.Call(ctx, &symbol, "symbol"); err != nil {
		return "", err
	}
	return symbol, nil
}

func (c *TokenClient) Decimals(ctx context.Context) (uint8, error) {
	var decimals uint8
	if err := c.Call(ctx, &decimals, "decimals"); err != nil {
		return 0, err
	}
	return decimals, nil
}

// ReceiveWithAuthorizationArgs bundles the EIP-3009 call's arguments.
type ReceiveWithAuthorizationArgs struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
	V           uint8
	R           [32]byte
	S           [32]byte
}

// ReceiveWithAuthorization calls the EIP-3009 receive-variant (not the
// transfer-variant): the executor (the relayer) is not the `from`
// party, and must use the third-party-executable variant (spec.md §4.6).
// This is the legacy path — it does not credit the provider ledger,
// since nothing here calls escrow.receivePayment.
func (c *TokenClient) ReceiveWithAuthorization(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, args ReceiveWithAuthorizationArgs) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "receiveWithAuthorization",
		args.From, args.To, args.Value, args.ValidAfter, args.ValidBefore,
		args.Nonce, args.V, args.R, args.S,
	)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}
