package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

type fakeLogStore struct{ logs []domain.AccessLog }

func (f *fakeLogStore) InsertAccessLog(ctx context.Context, log domain.AccessLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeLogStore) ReconcileReverted(ctx context.Context, txHash string) (*domain.AccessLog, error) {
	for i, log := range f.logs {
		if log.TxHash == txHash && !log.Reverted {
			f.logs[i].Reverted = true
			reverted := f.logs[i]
			return &reverted, nil
		}
	}
	return nil, nil
}

type fakeProviderStore struct {
	balances map[string]*big.Int
}

func (f *fakeProviderStore) IncrementEarned(ctx context.Context, address string, amount *big.Int) error {
	if f.balances == nil {
		f.balances = map[string]*big.Int{}
	}
	cur, ok := f.balances[address]
	if !ok {
		cur = big.NewInt(0)
	}
	f.balances[address] = new(big.Int).Add(cur, amount)
	return nil
}

func (f *fakeProviderStore) DecrementEarned(ctx context.Context, address string, amount *big.Int) error {
	if f.balances == nil {
		f.balances = map[string]*big.Int{}
	}
	cur, ok := f.balances[address]
	if !ok {
		cur = big.NewInt(0)
	}
	f.balances[address] = new(big.Int).Sub(cur, amount)
	return nil
}

func (f *fakeProviderStore) Get(ctx context.Context, address string) (*domain.Provider, error) {
	bal, ok := f.balances[address]
	if !ok {
		return nil, nil
	}
	return &domain.Provider{Address: address, TotalEarned: bal, TotalClaimed: big.NewInt(0)}, nil
}

type fakeEscrow struct{ balance *big.Int }

func (f *fakeEscrow) ProviderBalance(ctx context.Context, provider common.Address) (*big.Int, error) {
	return f.balance, nil
}

func TestSplitBasisPoints(t *testing.T) {
	revenue, fee := Split(big.NewInt(1_000_000), big.NewInt(250)) // 2.5%
	require.Equal(t, big.NewInt(25_000), fee)
	require.Equal(t, big.NewInt(975_000), revenue)
}

func TestRecordSettlementCreditsProviderExceptLegacy(t *testing.T) {
	logs := &fakeLogStore{}
	providers := &fakeProviderStore{}
	l := &Ledger{Logs: logs, Providers: providers, Escrow: &fakeEscrow{balance: big.NewInt(0)}}

	err := l.RecordSettlement(context.Background(), domain.AccessLog{
		ServiceID:       "svc-1",
		CallerAddress:   "0xAbC0000000000000000000000000000000000A",
		ProviderAddress: "0xProvider00000000000000000000000000000A",
		ProviderRevenue: big.NewInt(900),
		PlatformFee:     big.NewInt(100),
		SettlementMode:  domain.SettlementModeProcessor,
		CreatedAt:       time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, logs.logs, 1)
	got, err := providers.Get(context.Background(), domain.CanonicalAddress("0xProvider00000000000000000000000000000A"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(900), got.TotalEarned)

	err = l.RecordSettlement(context.Background(), domain.AccessLog{
		CallerAddress:   "0xdead000000000000000000000000000000dead",
		ProviderAddress: "0xdeadbeef00000000000000000000000000dead",
		ProviderRevenue: big.NewInt(500),
		SettlementMode:  domain.SettlementModeLegacy,
	})
	require.NoError(t, err)
	legacyProvider, err := providers.Get(context.Background(), "0xdeadbeef00000000000000000000000000dead")
	require.NoError(t, err)
	require.Nil(t, legacyProvider, "legacy settlements must not credit the off-chain mirror")
}

func TestReverseSettlementDecrementsProviderCredit(t *testing.T) {
	logs := &fakeLogStore{}
	providers := &fakeProviderStore{}
	l := &Ledger{Logs: logs, Providers: providers, Escrow: &fakeEscrow{balance: big.NewInt(0)}}

	err := l.RecordSettlement(context.Background(), domain.AccessLog{
		ProviderAddress: "0xProvider00000000000000000000000000000A",
		ProviderRevenue: big.NewInt(900),
		TxHash:          "0xtx1",
		SettlementMode:  domain.SettlementModeProcessor,
		CreatedAt:       time.Now(),
	})
	require.NoError(t, err)

	err = l.ReverseSettlement(context.Background(), "0xtx1")
	require.NoError(t, err)

	got, err := providers.Get(context.Background(), domain.CanonicalAddress("0xProvider00000000000000000000000000000A"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), got.TotalEarned)
}

func TestReverseSettlementIsIdempotent(t *testing.T) {
	logs := &fakeLogStore{}
	providers := &fakeProviderStore{}
	l := &Ledger{Logs: logs, Providers: providers, Escrow: &fakeEscrow{balance: big.NewInt(0)}}

	require.NoError(t, l.RecordSettlement(context.Background(), domain.AccessLog{
		ProviderAddress: "0xProvider00000000000000000000000000000A",
		ProviderRevenue: big.NewInt(900),
		TxHash:          "0xtx2",
		SettlementMode:  domain.SettlementModeProcessor,
	}))

	require.NoError(t, l.ReverseSettlement(context.Background(), "0xtx2"))
	require.NoError(t, l.ReverseSettlement(context.Background(), "0xtx2"), "a second reconcile of the same tx must be a no-op, not a double decrement")

	got, err := providers.Get(context.Background(), domain.CanonicalAddress("0xProvider00000000000000000000000000000A"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), got.TotalEarned, "balance must reflect exactly one reversal")
}

func TestWalletRevenueReadsOnChain(t *testing.T) {
	l := &Ledger{Escrow: &fakeEscrow{balance: big.NewInt(42)}}
	got, err := l.WalletRevenue(context.Background(), "0x0000000000000000000000000000000000dEaD")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), got)
}
