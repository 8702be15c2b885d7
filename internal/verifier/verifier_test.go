package verifier

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("crypto.GenerateKey: %v", err)
	}
	return key
}

// signAuthorization builds a fully-signed Authorization for the given
// (from is derived from key), to, value, window and nonce, hashing it
// exactly as RecoverSigner does so the two stay in lockstep.
func signAuthorization(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, token common.Address, tokenName string, to string, value *big.Int, validAfter, validBefore uint64, nonce string) x402types.Authorization {
	t.Helper()

	auth := x402types.Authorization{
		From:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		To:          to,
		Value:       value.String(),
		ValidAfter:  bigString(validAfter),
		ValidBefore: bigString(validBefore),
		Nonce:       nonce,
	}

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
			Name: tokenName, Version: "1",
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from": auth.From, "to": common.HexToAddress(auth.To).Hex(),
			"value": mustBig(auth.Value), "validAfter": mustBig(auth.ValidAfter),
			"validBefore": mustBig(auth.ValidBefore), "nonce": nonce,
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		t.Fatalf("HashStruct domain: %v", err)
	}
	messageHash, err := typedData.HashStruct("ReceiveWithAuthorization", typedData.Message)
	if err != nil {
		t.Fatalf("HashStruct message: %v", err)
	}
	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	digest := crypto.Keccak256(rawData)

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}

	auth.R = "0x" + common.Bytes2Hex(sig[0:32])
	auth.S = "0x" + common.Bytes2Hex(sig[32:64])
	auth.V = sig[64] + 27
	return auth
}

func bigString(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	to := "0x00000000000000000000000000000000000002"

	auth := signAuthorization(t, key, chainID, token, "USD Coin", to, big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))

	recovered, err := RecoverSigner(chainID, token, "USD Coin", auth)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), auth.From)
	}
}

func TestVerifyFullPipelineSucceeds(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	escrow := "0x00000000000000000000000000000000000002"

	restoreNow := setNow(1700001000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", escrow, big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	req := x402types.PaymentRequirement{
		PayTo: escrow, MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID, NonceChecker: fakeNonceChecker{used: false}}
	payer, err := v.Verify(context.Background(), auth, req)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if payer.Hex() != crypto.PubkeyToAddress(key.PublicKey).Hex() {
		t.Fatalf("payer = %s, want %s", payer.Hex(), auth.From)
	}
}

func TestVerifyRejectsWrongDestination(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")

	restoreNow := setNow(1700001000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", "0x0000000000000000000000000000000000dead", big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	req := x402types.PaymentRequirement{
		PayTo: "0x00000000000000000000000000000000000002", MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID}
	_, err := v.Verify(context.Background(), auth, req)
	ae := apperror.As(err)
	if ae.Code != "BAD_DESTINATION" {
		t.Fatalf("got code %s, want BAD_DESTINATION", ae.Code)
	}
}

func TestVerifyRejectsInsufficientValue(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	escrow := "0x00000000000000000000000000000000000002"

	restoreNow := setNow(1700001000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", escrow, big.NewInt(500), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	req := x402types.PaymentRequirement{
		PayTo: escrow, MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID}
	_, err := v.Verify(context.Background(), auth, req)
	ae := apperror.As(err)
	if ae.Code != "INSUFFICIENT_VALUE" {
		t.Fatalf("got code %s, want INSUFFICIENT_VALUE", ae.Code)
	}
}

func TestVerifyRejectsOutOfWindow(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	escrow := "0x00000000000000000000000000000000000002"

	restoreNow := setNow(1700004000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", escrow, big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	req := x402types.PaymentRequirement{
		PayTo: escrow, MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID}
	_, err := v.Verify(context.Background(), auth, req)
	ae := apperror.As(err)
	if ae.Code != "OUT_OF_WINDOW" {
		t.Fatalf("got code %s, want OUT_OF_WINDOW", ae.Code)
	}
}

func TestVerifyRejectsUsedNonce(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	escrow := "0x00000000000000000000000000000000000002"

	restoreNow := setNow(1700001000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", escrow, big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	req := x402types.PaymentRequirement{
		PayTo: escrow, MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID, NonceChecker: fakeNonceChecker{used: true}}
	_, err := v.Verify(context.Background(), auth, req)
	ae := apperror.As(err)
	if ae.Code != "NONCE_USED" {
		t.Fatalf("got code %s, want NONCE_USED", ae.Code)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	key := newTestKey(t)
	chainID := big.NewInt(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000001")
	escrow := "0x00000000000000000000000000000000000002"

	restoreNow := setNow(1700001000)
	defer restoreNow()

	auth := signAuthorization(t, key, chainID, token, "USD Coin", escrow, big.NewInt(1000), 1700000000, 1700003600, "0x"+common.Bytes2Hex(make([]byte, 32)))
	auth.S = "0x" + common.Bytes2Hex(make([]byte, 32)) // corrupt the signature

	req := x402types.PaymentRequirement{
		PayTo: escrow, MaxAmountRequired: "1000", Asset: token.Hex(),
		Extra: x402types.RequirementExtra{TokenName: "USD Coin"},
	}

	v := &Verifier{ChainID: chainID}
	_, err := v.Verify(context.Background(), auth, req)
	if err == nil {
		t.Fatalf("expected a corrupted signature to be rejected")
	}
}

type fakeNonceChecker struct{ used bool }

func (f fakeNonceChecker) IsNonceUsed(ctx context.Context, payer common.Address, nonce [32]byte) (bool, error) {
	return f.used, nil
}

func setNow(unix int64) func() {
	orig := Now
	Now = func() time.Time { return time.Unix(unix, 0) }
	return func() { Now = orig }
}
