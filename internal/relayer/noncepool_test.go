package relayer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestNoncePoolAllocatesSequentially(t *testing.T) {
	ctx := context.Background()
	pool, err := NewNoncePool(ctx, func(context.Context, common.Address) (uint64, error) {
		return 7, nil
	}, common.HexToAddress("0x1"), 2)
	require.NoError(t, err)

	n1, err := pool.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), n1.Uint64())

	n2, err := pool.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(8), n2.Uint64())

	pool.Release(n1, false)
	pool.Release(n2, false)

	n3, err := pool.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9), n3.Uint64())
}

func TestNoncePoolRewindsOnFailedSubmission(t *testing.T) {
	ctx := context.Background()
	pool, err := NewNoncePool(ctx, func(context.Context, common.Address) (uint64, error) {
		return 3, nil
	}, common.HexToAddress("0x1"), 1)
	require.NoError(t, err)

	n1, err := pool.Reserve(ctx)
	require.NoError(t, err)
	pool.Release(n1, true)

	n2, err := pool.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, n1.Uint64(), n2.Uint64(), "a failed submission must not burn a nonce")
}

func TestNoncePoolBoundsInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := NewNoncePool(ctx, func(context.Context, common.Address) (uint64, error) {
		return 0, nil
	}, common.HexToAddress("0x1"), 1)
	require.NoError(t, err)

	_, err = pool.Reserve(ctx)
	require.NoError(t, err)

	shortCtx, shortCancel := context.WithTimeout(ctx, 0)
	defer shortCancel()
	_, err = pool.Reserve(shortCtx)
	require.Error(t, err, "a second reservation must block until the first slot is released")
}
