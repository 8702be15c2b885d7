// Package relayer implements the gateway's settlement engine
// (spec.md §4.5): it owns the relayer's single signing identity,
// allocates nonces, submits the processor-routed (preferred) or
// direct-token (legacy) settlement transaction with a hardcoded gas
// limit, and drives the NEW -> VERIFIED -> SUBMITTED ->
// {CONFIRMED | REVERTED | TIMED_OUT} state machine.
package relayer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/kagenti-labs/x402-gateway/internal/contracts"
	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// defaultWatcherTimeout bounds how long a background confirmation
// watcher waits for a receipt when the engine has no configured
// ConfirmationWait, so a stuck RPC node can never leak goroutines.
const defaultWatcherTimeout = 5 * time.Minute

// Engine is the relayer's settlement identity and the single place
// that submits transactions, so the nonce pool and gas policy stay
// consistent across every request.
type Engine struct {
	Backend            contracts.Backend
	Processor          *contracts.PaymentProcessorClient
	Token              *contracts.TokenClient
	PrivateKey         *ecdsa.PrivateKey
	Address            common.Address
	ChainID            *big.Int
	Nonces             *NoncePool
	Gas                GasPolicy
	ConfirmationPolicy ConfirmationPolicy
	ConfirmationWait   time.Duration
	Log                zerolog.Logger

	// Watchers tracks every background confirmation goroutine spawned
	// under PolicyOptimistic, so the server can drain them (with a
	// deadline) on graceful shutdown instead of leaking them
	// (spec.md §4.5, SPEC_FULL.md §5).
	Watchers *sync.WaitGroup

	// Reconcile is invoked from the watcher goroutine when a
	// transaction recorded optimistically turns out to have reverted
	// on-chain. Nil is a valid no-op for callers (tests) that never
	// credit a ledger in the first place.
	Reconcile func(ctx context.Context, s *Settlement)
}

// NewEngine wires an Engine from a hex private key, matching the
// relayer identity format configured in SPEC_FULL.md §4.10.
func NewEngine(ctx context.Context, backend contracts.Backend, processor *contracts.PaymentProcessorClient, token *contracts.TokenClient, privateKeyHex string, chainID *big.Int, maxInFlight int, confirmationPolicy ConfirmationPolicy, confirmationWait time.Duration, log zerolog.Logger) (*Engine, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, err
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	pool, err := NewNoncePool(ctx, backend.PendingNonceAt, address, maxInFlight)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Backend:            backend,
		Processor:          processor,
		Token:              token,
		PrivateKey:         key,
		Address:            address,
		ChainID:            chainID,
		Nonces:             pool,
		Gas:                DefaultGasPolicy(),
		ConfirmationPolicy: confirmationPolicy,
		ConfirmationWait:   confirmationWait,
		Log:                log,
		Watchers:           &sync.WaitGroup{},
	}, nil
}

// SettleProcessor runs the preferred settlement path: processor.processPayment,
// which atomically pulls funds via token.receiveWithAuthorization and
// credits the escrow ledger (spec.md §4.5, §4.6).
func (e *Engine) SettleProcessor(ctx context.Context, svc *domain.Service, auth x402types.Authorization, payer common.Address) *Settlement {
	s := &Settlement{State: StateVerified, Mode: domain.SettlementModeProcessor, Payer: payer.Hex()}

	args, err := buildProcessorArgs(svc, auth)
	if err != nil {
		s.State = StateReverted
		s.Err = apperror.InvalidPayload(err)
		return s
	}

	e.submitAndAwait(ctx, s, func(opts *bind.TransactOpts) (string, error) {
		return e.Processor.ProcessPayment(ctx, opts, e.Gas.ProcessorGasLimit, args)
	})
	return s
}

// SettleLegacy calls token.receiveWithAuthorization directly, bypassing
// the escrow ledger entirely (spec.md §4.5, §9 — funds land at PayTo
// with no provider-revenue bookkeeping; callers accept this risk).
func (e *Engine) SettleLegacy(ctx context.Context, auth x402types.Authorization, payer common.Address) *Settlement {
	s := &Settlement{State: StateVerified, Mode: domain.SettlementModeLegacy, Payer: payer.Hex()}
	e.Log.Warn().Str("payer", payer.Hex()).Msg("settling via legacy direct-token path; escrow ledger will not be credited")

	args, err := buildReceiveArgs(auth)
	if err != nil {
		s.State = StateReverted
		s.Err = apperror.InvalidPayload(err)
		return s
	}

	e.submitAndAwait(ctx, s, func(opts *bind.TransactOpts) (string, error) {
		return e.Token.ReceiveWithAuthorization(ctx, opts, e.Gas.DirectTokenGasLimit, args)
	})
	return s
}

// Withdraw calls escrow.withdraw(provider, amount) on the provider's
// behalf, the on-chain leg of POST /claim (spec.md §4.6, §9). It reuses
// the same nonce pool and confirmation policy as settlement, since it
// is just another relayer-signed transaction.
func (e *Engine) Withdraw(ctx context.Context, escrow *contracts.EscrowClient, provider common.Address, amount *big.Int) *Settlement {
	s := &Settlement{State: StateVerified, Payer: provider.Hex()}

	e.submitAndAwait(ctx, s, func(opts *bind.TransactOpts) (string, error) {
		return escrow.Withdraw(ctx, opts, e.Gas.DirectTokenGasLimit, provider, amount)
	})
	return s
}

// submitAndAwait reserves a nonce, builds signed tx opts, invokes send,
// and then waits for confirmation per the engine's configured policy.
func (e *Engine) submitAndAwait(ctx context.Context, s *Settlement, send func(*bind.TransactOpts) (string, error)) {
	nonce, err := e.Nonces.Reserve(ctx)
	if err != nil {
		s.State = StateReverted
		s.Err = apperror.Internal(err)
		return
	}
	s.Nonce = nonce.String()

	opts, err := bind.NewKeyedTransactorWithChainID(e.PrivateKey, e.ChainID)
	if err != nil {
		e.Nonces.Release(nonce, true)
		s.State = StateReverted
		s.Err = apperror.Internal(err)
		return
	}
	opts.Nonce = nonce
	opts.Context = ctx
	opts.NoSend = false

	txHash, err := send(opts)
	if err != nil {
		e.Nonces.Release(nonce, true)
		s.State = StateReverted
		s.Err = classifyRevert(err.Error())
		return
	}
	e.Nonces.Release(nonce, false)

	s.State = StateSubmitted
	s.TxHash = txHash

	waitCtx := ctx
	cancel := func() {}
	if e.ConfirmationWait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, e.ConfirmationWait)
	}
	defer cancel()

	receipt, err := awaitConfirmation(waitCtx, e.Backend, common.HexToHash(txHash), e.ConfirmationPolicy)
	if err != nil {
		s.State = StateTimedOut
		s.Err = apperror.TimedOut()
		return
	}
	if receipt == nil {
		// PolicyOptimistic: return without waiting, but still watch
		// for the eventual receipt in the background so a revert gets
		// logged and reconciled instead of silently mis-crediting the
		// ledger mirror (spec.md §4.5, SPEC_FULL.md §5).
		s.State = StateSubmitted
		e.watchForRevert(txHash, *s)
		return
	}
	if receipt.Status == 0 {
		s.State = StateReverted
		s.Err = apperror.SettlementFailed(errRevert("transaction mined but reverted"))
		return
	}
	s.State = StateConfirmed
	s.Confirmations = 1
}

// watchForRevert is spawned only under PolicyOptimistic, once per
// settlement, tracked by e.Watchers so the server can drain it on
// shutdown. It never touches the caller's request context, which is
// long gone by the time a slow chain finally mines the transaction.
func (e *Engine) watchForRevert(txHash string, submitted Settlement) {
	e.Watchers.Add(1)
	go func() {
		defer e.Watchers.Done()

		timeout := e.ConfirmationWait
		if timeout <= 0 {
			timeout = defaultWatcherTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		receipt, err := awaitConfirmation(ctx, e.Backend, common.HexToHash(txHash), PolicyOneConfirmation)
		if err != nil {
			e.Log.Warn().Str("tx_hash", txHash).Err(err).Msg("confirmation watcher gave up waiting for optimistic settlement receipt")
			return
		}
		if receipt.Status == 0 {
			e.Log.Error().Str("tx_hash", txHash).Msg("optimistically settled transaction reverted on-chain; reconciling ledger")
			reverted := submitted
			reverted.State = StateReverted
			if e.Reconcile != nil {
				e.Reconcile(context.Background(), &reverted)
			}
			return
		}
		e.Log.Debug().Str("tx_hash", txHash).Msg("optimistically settled transaction confirmed")
	}()
}

func buildProcessorArgs(svc *domain.Service, auth x402types.Authorization) (contracts.ProcessPaymentArgs, error) {
	value, validAfter, validBefore, nonce, v, r, s, err := parseAuth(auth)
	if err != nil {
		return contracts.ProcessPaymentArgs{}, err
	}
	return contracts.ProcessPaymentArgs{
		ServiceIDHash: domain.ServiceIDHash(svc.ID),
		From:          common.HexToAddress(auth.From),
		Value:         value,
		ValidAfter:    validAfter,
		ValidBefore:   validBefore,
		Nonce:         nonce,
		V:             v,
		R:             r,
		S:             s,
	}, nil
}

func buildReceiveArgs(auth x402types.Authorization) (contracts.ReceiveWithAuthorizationArgs, error) {
	value, validAfter, validBefore, nonce, v, r, s, err := parseAuth(auth)
	if err != nil {
		return contracts.ReceiveWithAuthorizationArgs{}, err
	}
	return contracts.ReceiveWithAuthorizationArgs{
		From:        common.HexToAddress(auth.From),
		To:          common.HexToAddress(auth.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
		V:           v,
		R:           r,
		S:           s,
	}, nil
}

func parseAuth(auth x402types.Authorization) (value, validAfter, validBefore *big.Int, nonce [32]byte, v uint8, r, s [32]byte, err error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		err = errBadField("value")
		return
	}
	va, e1 := x402types.ParseUintField("validAfter", auth.ValidAfter)
	if e1 != nil {
		err = e1
		return
	}
	vb, e2 := x402types.ParseUintField("validBefore", auth.ValidBefore)
	if e2 != nil {
		err = e2
		return
	}
	validAfter = new(big.Int).SetUint64(va)
	validBefore = new(big.Int).SetUint64(vb)

	nonceBytes := common.FromHex(auth.Nonce)
	if len(nonceBytes) != 32 {
		err = errBadField("nonce")
		return
	}
	copy(nonce[:], nonceBytes)

	rBytes := common.FromHex(auth.R)
	if len(rBytes) != 32 {
		err = errBadField("r")
		return
	}
	copy(r[:], rBytes)

	sBytes := common.FromHex(auth.S)
	if len(sBytes) != 32 {
		err = errBadField("s")
		return
	}
	copy(s[:], sBytes)

	v = auth.V
	return
}

type errBadFieldT struct{ field string }

func (e errBadFieldT) Error() string { return "invalid authorization field: " + e.field }

func errBadField(field string) error { return errBadFieldT{field} }
