package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PaymentProcessorClient binds to the PaymentProcessor contract, the
// only authorized caller of Escrow.receivePayment (spec.md §4.6).
type PaymentProcessorClient struct {
	*Client
}

func NewPaymentProcessorClient(backend Backend, address common.Address) (*PaymentProcessorClient, error) {
	c, err := NewClient(backend, address, paymentProcessorABI)
	if err != nil {
		return nil, err
	}
	return &PaymentProcessorClient{c}, nil
}

// IsNonceUsed implements verifier.NonceChecker against
// PaymentProcessor.usedNonces.
func (c *PaymentProcessorClient) IsNonceUsed(ctx context.Context, payer common.Address, nonce [32]byte) (bool, error) {
	var used bool
	if err := c.Call(ctx, &used, "usedNonces", payer, nonce); err != nil {
		return false, err
	}
	return used, nil
}

// ProcessPaymentArgs bundles the processPayment call's positional
// arguments (spec.md §4.5, §6).
type ProcessPaymentArgs struct {
	ServiceIDHash common.Hash
	From          common.Address
	Value         *big.Int
	ValidAfter    *big.Int
	ValidBefore   *big.Int
	Nonce         [32]byte
	V             uint8
	R             [32]byte
	S             [32]byte
}

// ProcessPayment submits processPayment using a gas limit >= 500k, per
// spec.md §4.5: estimateGas is unreliable for this contract's nested
// call chain (token.receiveWithAuthorization -> escrow.receivePayment),
// returning UNPREDICTABLE_GAS_LIMIT for calls that in fact succeed.
func (c *PaymentProcessorClient) ProcessPayment(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, args ProcessPaymentArgs) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "processPayment",
		args.ServiceIDHash, args.From, args.Value, args.ValidAfter, args.ValidBefore,
		args.Nonce, args.V, args.R, args.S,
	)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// MinProcessorGasLimit is the floor gas limit for processor-routed
// settlement, per spec.md §4.5.
const MinProcessorGasLimit = 500_000

// MinDirectTokenGasLimit is the floor gas limit for the legacy direct
// token.receiveWithAuthorization path, per spec.md §4.5.
const MinDirectTokenGasLimit = 200_000
