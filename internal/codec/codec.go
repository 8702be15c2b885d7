// Package codec decodes the payment-signature header: either a direct
// JSON authorization object, or the base64 tunnel-mode envelope
// described in spec.md §4.3 and §6.
//
// Grounded on the teacher's http/internal/helpers.ParsePaymentHeaderFromRequest,
// generalized from the single-scheme X-PAYMENT header to the tunnel
// envelope's nested base64(JSON(base64(JSON))) shape.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// HeaderName is the HTTP header carrying the payment payload.
const HeaderName = "payment-signature"

// Decoded is the result of decoding a payment-signature header: the
// recovered authorization plus the echoed requirements block, if any
// (tunnel mode always carries one; direct mode never does).
type Decoded struct {
	Authorization x402types.Authorization
	Accepted      *x402types.PaymentRequirement
}

// Decode implements the three-step algorithm from spec.md §4.3:
// base64-decode the outer token, detect tunnel mode via a `proof`
// field, and fall back to treating the outer object as the
// authorization directly.
func Decode(headerValue string) (*Decoded, error) {
	if headerValue == "" {
		return nil, apperror.MissingPayment()
	}

	outer, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return nil, apperror.InvalidPayload(fmt.Errorf("invalid base64 payload: %w", err))
	}

	var envelope x402types.TunnelEnvelope
	if err := json.Unmarshal(outer, &envelope); err == nil && envelope.Proof != "" {
		return decodeTunnel(envelope)
	}

	// Not tunnel mode: treat the outer JSON as the authorization directly.
	var auth x402types.Authorization
	if err := json.Unmarshal(outer, &auth); err != nil {
		return nil, apperror.InvalidPayload(fmt.Errorf("payload is neither a tunnel envelope nor a direct authorization: %w", err))
	}
	if err := validateAuthorizationShape(auth); err != nil {
		return nil, apperror.InvalidPayload(err)
	}
	return &Decoded{Authorization: auth}, nil
}

func decodeTunnel(envelope x402types.TunnelEnvelope) (*Decoded, error) {
	proofBytes, err := base64.StdEncoding.DecodeString(envelope.Proof)
	if err != nil {
		return nil, apperror.InvalidPayload(fmt.Errorf("invalid base64 proof: %w", err))
	}

	var auth x402types.Authorization
	if err := json.Unmarshal(proofBytes, &auth); err != nil {
		return nil, apperror.InvalidPayload(fmt.Errorf("invalid proof JSON: %w", err))
	}
	if err := validateAuthorizationShape(auth); err != nil {
		return nil, apperror.InvalidPayload(err)
	}

	accepted := envelope.Accepted
	return &Decoded{Authorization: auth, Accepted: &accepted}, nil
}

// ValidateEcho checks the tunnel envelope's echoed requirements
// against the server-issued ones, per spec.md §4.3's deep-equality
// requirement. A direct-mode payload (no echo) is not checked here;
// the verifier still enforces destination/value/window against the
// server-issued requirements regardless.
func ValidateEcho(decoded *Decoded, issued x402types.PaymentRequirement) error {
	if decoded.Accepted == nil {
		return nil
	}
	if !decoded.Accepted.Equal(issued) {
		return apperror.BadRequirementsEcho()
	}
	return nil
}

func validateAuthorizationShape(a x402types.Authorization) error {
	if a.From == "" || a.To == "" || a.Value == "" || a.ValidAfter == "" || a.ValidBefore == "" || a.Nonce == "" || a.R == "" || a.S == "" {
		return fmt.Errorf("authorization is missing required fields")
	}
	if _, err := x402types.ParseUintField("value", a.Value); err != nil {
		return err
	}
	if _, err := x402types.ParseUintField("validAfter", a.ValidAfter); err != nil {
		return err
	}
	if _, err := x402types.ParseUintField("validBefore", a.ValidBefore); err != nil {
		return err
	}
	return nil
}

// EncodeTunnel is the inverse operation, used by tests to exercise the
// round-trip law in spec.md §8 (decode(encode_tunnel(sig)) = sig).
func EncodeTunnel(accepted x402types.PaymentRequirement, auth x402types.Authorization) (string, error) {
	proofJSON, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	envelope := x402types.TunnelEnvelope{
		X402Version: 2,
		Accepted:    accepted,
		Proof:       base64.StdEncoding.EncodeToString(proofJSON),
	}
	outer, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(outer), nil
}
