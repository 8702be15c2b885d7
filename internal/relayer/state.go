package relayer

import "github.com/kagenti-labs/x402-gateway/internal/domain"

// State is the settlement state machine from spec.md §4.5:
// NEW -> VERIFIED -> SUBMITTED -> {CONFIRMED | REVERTED | TIMED_OUT}.
type State string

const (
	StateNew        State = "NEW"
	StateVerified   State = "VERIFIED"
	StateSubmitted  State = "SUBMITTED"
	StateConfirmed  State = "CONFIRMED"
	StateReverted   State = "REVERTED"
	StateTimedOut   State = "TIMED_OUT"
)

// Terminal reports whether s is one of the three terminal states.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateReverted, StateTimedOut:
		return true
	default:
		return false
	}
}

// ConfirmationPolicy controls how long Settle waits after broadcast
// before returning, trading latency against certainty (spec.md §4.5).
type ConfirmationPolicy string

const (
	// PolicyOptimistic returns as soon as the transaction is broadcast,
	// without waiting for a receipt. Pairs with the idempotency cache
	// and rate limiter (SPEC_FULL.md §3.2) to bound gas-griefing risk.
	PolicyOptimistic ConfirmationPolicy = "optimistic"
	// PolicyOneConfirmation waits for one mined block containing the tx.
	PolicyOneConfirmation ConfirmationPolicy = "one_confirmation"
	// PolicyDeep waits for DeepConfirmations additional blocks on top of
	// the first, for callers who need reorg resistance.
	PolicyDeep ConfirmationPolicy = "deep"
)

// Settlement is the full record of one settlement attempt, threaded
// through the state machine and returned to the caller for logging
// and for the ledger mirror (SPEC_FULL.md §3.1 access_logs).
type Settlement struct {
	State         State
	Mode          domain.SettlementMode
	TxHash        string
	Payer         string
	Nonce         string
	RevertReason  string
	Confirmations uint64
	Err           error
}
