package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildManifestAdvertisesCatalogAndMCPEndpoints(t *testing.T) {
	m := BuildManifest("https://gw.example", "eip155:8453")

	require.Equal(t, "x402_gateway", m.NameForModel)
	require.Equal(t, "https://gw.example/agent/services", m.API.URL)
	require.Equal(t, "exact", m.X402.Scheme)
	require.Equal(t, "eip155:8453", m.X402.Network)
	require.Equal(t, "https://gw.example/agent/services", m.X402.CatalogURL)
	require.Equal(t, "https://gw.example/mcp", m.X402.MCPEndpoint)
}
