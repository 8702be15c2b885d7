package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kagenti-labs/x402-gateway/internal/contracts"
	"github.com/kagenti-labs/x402-gateway/retry"
)

// DeepConfirmations is how many blocks past the first must pass under
// PolicyDeep before a settlement is considered final.
const DeepConfirmations = 5

var errNotYetMined = errors.New("transaction not yet mined")

// awaitConfirmation polls for a receipt per policy, honoring ctx's
// deadline as the "confirmation wait exceeded" boundary (spec.md §4.5,
// mapped to apperror.TimedOut by the caller).
func awaitConfirmation(ctx context.Context, backend contracts.Backend, txHash common.Hash, policy ConfirmationPolicy) (*types.Receipt, error) {
	if policy == PolicyOptimistic {
		return nil, nil
	}

	receipt, err := retry.WithRetry(ctx, retry.Config{
		MaxAttempts:  60,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.5,
	}, isPendingReceipt, func() (*types.Receipt, error) {
		r, err := backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, errNotYetMined
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	if policy == PolicyDeep {
		if err := waitForDepth(ctx, backend, receipt.BlockNumber.Uint64()+DeepConfirmations); err != nil {
			return receipt, err
		}
	}
	return receipt, nil
}

func isPendingReceipt(err error) bool {
	return errors.Is(err, errNotYetMined) || errors.Is(err, ethereum.NotFound)
}

func waitForDepth(ctx context.Context, backend contracts.Backend, targetBlock uint64) error {
	_, err := retry.WithRetry(ctx, retry.Config{
		MaxAttempts:  120,
		InitialDelay: 1 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.2,
	}, func(error) bool { return true }, func() (struct{}, error) {
		head, err := backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return struct{}{}, err
		}
		if head.Number.Uint64() < targetBlock {
			return struct{}{}, errNotYetMined
		}
		return struct{}{}, nil
	})
	return err
}
