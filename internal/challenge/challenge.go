// Package challenge builds the 402 Payment Required body from a
// registered service record (spec.md §4.2).
package challenge

import (
	"fmt"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

// Builder constructs payment requirements. It is stateless: every
// challenge is independent, with no per-challenge state stored
// server-side, since the signature itself carries all replay-relevant
// state (spec.md §4.2).
type Builder struct {
	BaseURL       string
	EscrowAddress string
	ChainID       int64
	TokenSymbol   string
	TokenDecimals int
	TokenName     string
	MaxTimeout    int
}

// Requirement builds the PaymentRequirement for one service. The
// payTo field is always the escrow contract address — never the
// provider's or relayer's wallet — because a mismatch there causes an
// on-chain revert at settlement time (spec.md §4.2).
func (b *Builder) Requirement(svc *domain.Service) x402types.PaymentRequirement {
	return x402types.PaymentRequirement{
		Scheme:            "exact",
		Network:           fmt.Sprintf("eip155:%d", b.ChainID),
		MaxAmountRequired: svc.PriceBaseUnits.String(),
		Resource:          domain.CanonicalEndpoint(b.BaseURL, svc.ID),
		Description:       svc.Name,
		PayTo:             b.EscrowAddress,
		MaxTimeoutSeconds: b.MaxTimeout,
		Asset:             svc.TokenAddress,
		Extra: x402types.RequirementExtra{
			Symbol:    b.TokenSymbol,
			Decimals:  b.TokenDecimals,
			TokenName: b.TokenName,
		},
	}
}

// Challenge wraps a requirement list in the canonical 402 body shape
// (spec.md §6).
func (b *Builder) Challenge(svc *domain.Service) x402types.ChallengeResponse {
	return x402types.ChallengeResponse{
		Error:   "Payment Required",
		Accepts: []x402types.PaymentRequirement{b.Requirement(svc)},
	}
}
