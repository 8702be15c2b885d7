package discovery

// Manifest is the .well-known/ai-plugin.json body advertising this
// gateway's catalog and payment scheme to agent frameworks
// (spec.md §4.9).
type Manifest struct {
	SchemaVersion string       `json:"schema_version"`
	NameForHuman  string       `json:"name_for_human"`
	NameForModel  string       `json:"name_for_model"`
	Description   string       `json:"description_for_model"`
	API           ManifestAPI  `json:"api"`
	X402          ManifestX402 `json:"x402"`
}

type ManifestAPI struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ManifestX402 tells an agent where to find the machine-readable
// catalog and what payment scheme/network to expect before it ever
// issues a request (spec.md §6).
type ManifestX402 struct {
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	CatalogURL  string `json:"catalog_url"`
	MCPEndpoint string `json:"mcp_endpoint,omitempty"`
}

// BuildManifest assembles the plugin manifest for baseURL.
func BuildManifest(baseURL, network string) Manifest {
	return Manifest{
		SchemaVersion: "v1",
		NameForHuman:  "x402 Payment Gateway",
		NameForModel:  "x402_gateway",
		Description:   "Discover and pay per-call for hosted and proxied services via the x402 protocol.",
		API: ManifestAPI{
			Type: "openapi",
			URL:  baseURL + "/agent/services",
		},
		X402: ManifestX402{
			Scheme:      "exact",
			Network:     network,
			CatalogURL:  baseURL + "/agent/services",
			MCPEndpoint: baseURL + "/mcp",
		},
	}
}
