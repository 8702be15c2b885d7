package relayer

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NoncePool hands out strictly increasing Ethereum account nonces for
// the relayer's single signing identity (spec.md §4.5): settlement
// throughput is bounded by how many unconfirmed transactions the
// relayer is willing to have in flight at once, not by per-request
// nonce contention, since every request shares one account.
type NoncePool struct {
	mu       sync.Mutex
	next     uint64
	inFlight chan struct{}
}

// NoncePendingNonceAt matches ethclient.Client.PendingNonceAt, the
// source of truth used to seed the pool at startup.
type NoncePendingNonceAt func(ctx context.Context, account common.Address) (uint64, error)

// NewNoncePool seeds the pool from the chain's pending nonce and
// bounds concurrent in-flight allocations to maxInFlight, so a stalled
// RPC or a run of slow confirmations can't let the relayer race ahead
// of what it can plausibly get mined.
func NewNoncePool(ctx context.Context, pendingNonceAt NoncePendingNonceAt, account common.Address, maxInFlight int) (*NoncePool, error) {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	start, err := pendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("seeding nonce pool: %w", err)
	}
	return &NoncePool{
		next:     start,
		inFlight: make(chan struct{}, maxInFlight),
	}, nil
}

// Reserve blocks until an in-flight slot is free, then returns the
// next nonce to use. The caller must call Release exactly once,
// whether or not the submission succeeded.
func (p *NoncePool) Reserve(ctx context.Context) (*big.Int, error) {
	select {
	case p.inFlight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	n := p.next
	p.next++
	p.mu.Unlock()

	return new(big.Int).SetUint64(n), nil
}

// Release frees the in-flight slot. failed should be true when the
// reserved nonce was never broadcast (e.g. signing failed before
// SendTransaction), in which case the pool rewinds so the nonce is
// reused instead of leaving a permanent gap that would stall every
// later transaction.
func (p *NoncePool) Release(n *big.Int, failed bool) {
	p.mu.Lock()
	if failed && n.Uint64() == p.next-1 {
		p.next--
	}
	p.mu.Unlock()
	<-p.inFlight
}
