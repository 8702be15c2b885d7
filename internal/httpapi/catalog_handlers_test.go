package httpapi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/internal/challenge"
	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

func testServer() *Server {
	return &Server{
		BaseURL:      "https://gw.example",
		TokenAddress: "0xtoken",
		Challenge: &challenge.Builder{
			BaseURL: "https://gw.example", EscrowAddress: "0xescrow", ChainID: 8453,
			TokenSymbol: "USDC", TokenDecimals: 6, TokenName: "USD Coin", MaxTimeout: 60,
		},
	}
}

func testService() *domain.Service {
	return &domain.Service{
		ID: "svc-1", Name: "Weather", Description: "forecast lookup",
		PriceBaseUnits: big.NewInt(1000), TokenAddress: "0xtoken",
		ProviderAddress: "0xprovider", Kind: x402types.KindHosted, Active: true,
	}
}

func TestToCatalogEntryOmitsHostedContent(t *testing.T) {
	s := testServer()
	svc := testService()
	svc.Content = []byte(`{"secret":"weather data"}`)

	entry := s.toCatalogEntry(svc)
	require.Equal(t, "svc-1", entry.ID)
	require.Equal(t, "Weather", entry.Name)
	require.Equal(t, "HOSTED", entry.Kind)
	require.Equal(t, "0xescrow", entry.PaymentRequirements.PayTo)
	require.Equal(t, "1000", entry.PaymentRequirements.MaxAmountRequired)
}

func TestSigningInfoForMatchesEIP712Authorization(t *testing.T) {
	s := testServer()
	svc := testService()

	info := s.signingInfoFor(svc)
	require.Equal(t, "USD Coin", info.Domain.Name)
	require.Equal(t, "1", info.Domain.Version)
	require.Equal(t, int64(8453), info.Domain.ChainID)
	require.Equal(t, "0xtoken", info.Domain.VerifyingContract)
	require.Equal(t, "ReceiveWithAuthorization", info.PrimaryType)

	require.Len(t, info.Types, 6)
	names := make([]string, len(info.Types))
	for i, f := range info.Types {
		names[i] = f.Name
	}
	require.Equal(t, []string{"from", "to", "value", "validAfter", "validBefore", "nonce"}, names)
}

func TestToAgentEntryEmbedsCatalogEntryAndSigningInfo(t *testing.T) {
	s := testServer()
	svc := testService()

	agentEntry := s.toAgentEntry(svc)
	require.Equal(t, "svc-1", agentEntry.ID)
	require.Equal(t, "/agent/execute", agentEntry.ExecutePath)
	require.Equal(t, "USD Coin", agentEntry.SigningInfo.Domain.Name)
}
