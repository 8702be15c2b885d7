package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory stand-in for *ethclient.Client,
// returning a fixed ABI-encoded result for CallContract and recording
// sent transactions.
type fakeBackend struct {
	callResult []byte
	callErr    error
	sent       []*types.Transaction
	gasPrice   *big.Int
	chainID    *big.Int
	nonce      uint64
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callResult, f.callErr
}
func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return nil, nil
}
func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *fakeBackend) ContractCall(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callResult, f.callErr
}
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}
func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}
func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 0, nil
}
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, nil
}
func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, nil
}
func (f *fakeBackend) PendingCallContract(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	return f.callResult, f.callErr
}
func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}
func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func TestServiceRegistryABIRoundTrip(t *testing.T) {
	c, err := NewClient(&fakeBackend{}, common.HexToAddress("0x1"), serviceRegistryABI)
	require.NoError(t, err)
	require.Contains(t, c.ABI.Methods, "register")
	require.Contains(t, c.ABI.Methods, "services")
}

func TestProcessorIsNonceUsed(t *testing.T) {
	parsed, err := NewClient(&fakeBackend{}, common.HexToAddress("0x1"), paymentProcessorABI)
	require.NoError(t, err)
	packed, err := parsed.ABI.Methods["usedNonces"].Outputs.Pack(true)
	require.NoError(t, err)

	backend := &fakeBackend{callResult: packed}
	client, err := NewPaymentProcessorClient(backend, common.HexToAddress("0x2"))
	require.NoError(t, err)

	used, err := client.IsNonceUsed(context.Background(), common.HexToAddress("0x3"), [32]byte{1})
	require.NoError(t, err)
	require.True(t, used)
}

func TestEscrowProviderBalance(t *testing.T) {
	parsed, err := NewClient(&fakeBackend{}, common.HexToAddress("0x1"), escrowABI)
	require.NoError(t, err)
	want := big.NewInt(424242)
	packed, err := parsed.ABI.Methods["providerBalances"].Outputs.Pack(want)
	require.NoError(t, err)

	backend := &fakeBackend{callResult: packed}
	client, err := NewEscrowClient(backend, common.HexToAddress("0x2"))
	require.NoError(t, err)

	got, err := client.ProviderBalance(context.Background(), common.HexToAddress("0x3"))
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(got))
}

func TestDialBackendChainIDMismatchIsNotReachedHere(t *testing.T) {
	// DialBackend requires a live RPC; exercised only through
	// integration setups. This test documents the contract shape.
	require.NotNil(t, DialBackend)
}
