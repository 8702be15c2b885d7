// Package x402types defines the wire types of the x402 challenge/
// authorization protocol used by this gateway: the 402 challenge body,
// the EIP-3009 authorization tuple, and the settlement result.
//
// Grounded on the teacher's top-level x402 package (types.go), adapted
// from the generic multi-scheme/multi-network payload envelope to the
// gateway's single EVM "exact" scheme with an escrow-bound
// ReceiveWithAuthorization authorization (spec.md §3, §6).
package x402types

import (
	"fmt"
	"strconv"
)

// PaymentRequirement is the structured payment descriptor issued in a
// 402 challenge and echoed back by the client's signed payload.
type PaymentRequirement struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Asset             string         `json:"asset"`
	Extra             RequirementExtra `json:"extra"`
}

// RequirementExtra carries token metadata a signer needs to build the
// EIP-712 domain without a separate RPC round-trip.
type RequirementExtra struct {
	Symbol    string `json:"symbol"`
	Decimals  int    `json:"decimals"`
	TokenName string `json:"tokenName"`
}

// ChallengeResponse is the full 402 body, per spec.md §6.
type ChallengeResponse struct {
	Error   string               `json:"error"`
	Accepts []PaymentRequirement `json:"accepts"`
}

// Authorization is the EIP-3009 receiveWithAuthorization tuple plus
// its ECDSA signature, decoded from either direct or tunnel-mode
// payloads (spec.md §3, §4.3).
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
	V           uint8  `json:"v"`
	R           string `json:"r"`
	S           string `json:"s"`
}

// TunnelEnvelope is the outer base64 JSON object carried in the
// payment-signature header (spec.md §4.3, §6).
type TunnelEnvelope struct {
	X402Version int                `json:"x402Version"`
	Accepted    PaymentRequirement `json:"accepted"`
	Proof       string             `json:"proof"`
}

// SettlementResponse reports the outcome of an on-chain settlement
// attempt, echoed to the caller in the success envelope.
type SettlementResponse struct {
	Success     bool   `json:"success"`
	TxHash      string `json:"txHash,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// ServiceKind is the tagged-variant discriminator for a registered
// service (spec.md §3, §9).
type ServiceKind string

const (
	KindHosted ServiceKind = "HOSTED"
	KindProxy  ServiceKind = "PROXY"
	KindNative ServiceKind = "NATIVE"
)

// Equal performs the deep, recognized-field equality check the
// payload codec needs to validate an echoed `accepted` block against
// the server-issued requirements (spec.md §4.3).
func (r PaymentRequirement) Equal(other PaymentRequirement) bool {
	return r.Scheme == other.Scheme &&
		r.Network == other.Network &&
		r.MaxAmountRequired == other.MaxAmountRequired &&
		r.Resource == other.Resource &&
		r.PayTo == other.PayTo &&
		r.Asset == other.Asset &&
		r.MaxTimeoutSeconds == other.MaxTimeoutSeconds
}

// ParseUintField parses a decimal string field (value/validAfter/
// validBefore) and wraps the error with the offending field name.
func ParseUintField(name, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return n, nil
}
