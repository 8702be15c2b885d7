// Package verifier implements the pure, idempotent off-chain
// signature verification pipeline from spec.md §4.4: destination,
// value, time window, nonce freshness, and EIP-712 signature
// recovery, in that order.
//
// The EIP-712 digest construction is grounded on the teacher's
// signers/evm/eip3009.go (SignTransferAuthorization), inverted here to
// recover a signer instead of producing a signature, and retargeted
// from TransferWithAuthorization to ReceiveWithAuthorization per
// spec.md §6.
package verifier

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// NonceChecker probes the on-chain usedNonces mapping so a doomed
// submission can be rejected before it costs gas (spec.md §4.4 step 4).
type NonceChecker interface {
	IsNonceUsed(ctx context.Context, payer common.Address, nonce [32]byte) (bool, error)
}

// Verifier is stateless aside from its NonceChecker dependency; Verify
// has no side effects and is safe to call concurrently and repeatedly.
type Verifier struct {
	ChainID      *big.Int
	NonceChecker NonceChecker
}

// Now is overridable in tests; defaults to time.Now.
var Now = time.Now

// Verify runs the full pipeline against a decoded authorization and
// the service's issued requirements. Returns the recovered payer
// address on success.
func (v *Verifier) Verify(ctx context.Context, auth x402types.Authorization, req x402types.PaymentRequirement) (common.Address, error) {
	from := common.HexToAddress(auth.From)
	to := common.HexToAddress(auth.To)
	escrow := common.HexToAddress(req.PayTo)

	// 1. Destination match.
	if !strings.EqualFold(to.Hex(), escrow.Hex()) {
		return common.Address{}, apperror.BadDestination()
	}

	// 2. Value match.
	value, err := parseBig(auth.Value)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	price, err := parseBig(req.MaxAmountRequired)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	if value.Cmp(price) < 0 {
		return common.Address{}, apperror.InsufficientValue()
	}

	// 3. Time window: valid_after < now < valid_before.
	validAfter, err := x402types.ParseUintField("validAfter", auth.ValidAfter)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	validBefore, err := x402types.ParseUintField("validBefore", auth.ValidBefore)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	now := uint64(Now().Unix())
	if now <= validAfter || now >= validBefore {
		return common.Address{}, apperror.OutOfWindow()
	}

	// 4. Nonce freshness (off-chain probe; the contract re-checks too).
	nonce, err := parseNonce(auth.Nonce)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	if v.NonceChecker != nil {
		used, err := v.NonceChecker.IsNonceUsed(ctx, from, nonce)
		if err != nil {
			return common.Address{}, apperror.Internal(err)
		}
		if used {
			return common.Address{}, apperror.NonceUsed()
		}
	}

	// 5. Signature recovery against the EIP-712 digest.
	recovered, err := RecoverSigner(v.ChainID, common.HexToAddress(req.Asset), req.Extra.TokenName, auth)
	if err != nil {
		return common.Address{}, apperror.InvalidPayload(err)
	}
	if !strings.EqualFold(recovered.Hex(), from.Hex()) {
		return common.Address{}, apperror.BadSignature()
	}

	return from, nil
}

// RecoverSigner recomputes the EIP-712 digest for
// ReceiveWithAuthorization and recovers the signing address from
// (v, r, s). The domain is {name, version="1", chainId,
// verifyingContract=tokenAddress} per spec.md §6 — it must remain
// stable, since changing it breaks every existing signer.
func RecoverSigner(chainID *big.Int, tokenAddress common.Address, tokenName string, auth x402types.Authorization) (common.Address, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"ReceiveWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "ReceiveWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              tokenName,
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: tokenAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        common.HexToAddress(auth.From).Hex(),
			"to":          common.HexToAddress(auth.To).Hex(),
			"value":       mustBig(auth.Value),
			"validAfter":  mustBig(auth.ValidAfter),
			"validBefore": mustBig(auth.ValidBefore),
			"nonce":       auth.Nonce,
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Address{}, err
	}
	messageHash, err := typedData.HashStruct("ReceiveWithAuthorization", typedData.Message)
	if err != nil {
		return common.Address{}, err
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	digest := crypto.Keccak256(rawData)

	sig, err := buildSignature(auth)
	if err != nil {
		return common.Address{}, err
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

func buildSignature(auth x402types.Authorization) ([]byte, error) {
	r, err := hexTo32(auth.R)
	if err != nil {
		return nil, err
	}
	s, err := hexTo32(auth.S)
	if err != nil {
		return nil, err
	}
	v := auth.V
	if v >= 27 {
		v -= 27
	}
	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v
	return sig, nil
}

func hexTo32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	b := common.FromHex("0x" + s)
	if len(b) != 32 {
		return out, apperror.InvalidPayload(errHexLen(s))
	}
	copy(out[:], b)
	return out, nil
}

type errHexLenT struct{ s string }

func (e errHexLenT) Error() string { return "expected 32-byte hex value, got " + e.s }

func errHexLen(s string) error { return errHexLenT{s} }

func parseNonce(s string) ([32]byte, error) {
	return hexTo32(s)
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errBadInt(s)
	}
	return n, nil
}

type errBadIntT struct{ s string }

func (e errBadIntT) Error() string { return "invalid integer: " + e.s }

func errBadInt(s string) error { return errBadIntT{s} }

func mustBig(s string) *math.HexOrDecimal256 {
	n, _ := new(big.Int).SetString(s, 10)
	return (*math.HexOrDecimal256)(n)
}
