package challenge

import (
	"math/big"
	"testing"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

func TestRequirementPayToIsAlwaysEscrow(t *testing.T) {
	b := &Builder{
		BaseURL: "https://gw.example", EscrowAddress: "0xescrow", ChainID: 8453,
		TokenSymbol: "USDC", TokenDecimals: 6, TokenName: "USD Coin", MaxTimeout: 60,
	}
	svc := &domain.Service{ID: "svc-1", Name: "Weather", PriceBaseUnits: big.NewInt(1000),
		TokenAddress: "0xtoken", ProviderAddress: "0xprovider", Kind: x402types.KindHosted}

	req := b.Requirement(svc)
	if req.PayTo != "0xescrow" {
		t.Fatalf("PayTo = %q, want the escrow address, never the provider/relayer wallet", req.PayTo)
	}
	if req.Resource != "https://gw.example/gateway/svc-1" {
		t.Fatalf("Resource = %q, want the gateway-prefixed self-referencing path", req.Resource)
	}
	if req.Network != "eip155:8453" {
		t.Fatalf("Network = %q, want eip155:8453", req.Network)
	}
	if req.MaxAmountRequired != "1000" {
		t.Fatalf("MaxAmountRequired = %q, want 1000", req.MaxAmountRequired)
	}
}

func TestChallengeWrapsSingleRequirement(t *testing.T) {
	b := &Builder{EscrowAddress: "0xescrow", ChainID: 1}
	svc := &domain.Service{ID: "svc-1", PriceBaseUnits: big.NewInt(1), Kind: x402types.KindNative}

	ch := b.Challenge(svc)
	if len(ch.Accepts) != 1 {
		t.Fatalf("expected exactly one accepted requirement, got %d", len(ch.Accepts))
	}
	if ch.Error == "" {
		t.Fatalf("expected a non-empty challenge error message")
	}
}
