package httpapi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/internal/codec"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

func TestMustBigParsesDecimalString(t *testing.T) {
	require.Equal(t, big.NewInt(1000), mustBig("1000"))
}

func TestMustBigReturnsZeroOnGarbage(t *testing.T) {
	require.Equal(t, big.NewInt(0), mustBig("not-a-number"))
}

func TestLegacyRequirementEchoesAcceptedBlock(t *testing.T) {
	s := testServer()
	decoded := &codec.Decoded{
		Authorization: x402types.Authorization{To: "0xreceiver", Value: "500"},
		Accepted: &x402types.PaymentRequirement{
			Scheme: "exact", Network: "eip155:8453", Resource: "https://gw.example/gateway/svc-1",
			Asset: "0xtoken", PayTo: "0xescrow", MaxAmountRequired: "1000",
		},
	}

	req := s.legacyRequirement(decoded)
	require.Equal(t, "0xreceiver", req.PayTo, "legacy path always settles to the caller's own `to`, not the echoed payTo")
	require.Equal(t, "500", req.MaxAmountRequired, "legacy path trusts the signed authorization's value, not the echoed amount")
	require.Equal(t, "exact", req.Scheme)
}

func TestLegacyRequirementFallsBackToGatewayTokenWhenNotTunnelMode(t *testing.T) {
	s := testServer()
	decoded := &codec.Decoded{
		Authorization: x402types.Authorization{To: "0xreceiver", Value: "500"},
	}

	req := s.legacyRequirement(decoded)
	require.Equal(t, "0xreceiver", req.PayTo)
	require.Equal(t, "500", req.MaxAmountRequired)
	require.Equal(t, "0xtoken", req.Asset)
	require.Equal(t, "USDC", req.Extra.Symbol)
	require.Equal(t, "USD Coin", req.Extra.TokenName)
}
