package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kagenti-labs/x402-gateway/internal/challenge"
	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// ToolServer exposes the catalog to agent frameworks over MCP, so an
// agent can discover and price services through the same tool-calling
// surface it already uses for everything else, instead of needing a
// bespoke HTTP client.
//
// Grounded on the teacher's mcp/server.X402Server (server.go): that
// type wraps an MCP server and adds payment-requirement *enforcement*
// against an external facilitator. This gateway is itself the
// facilitator, so ToolServer keeps the "wrap an MCPServer, add typed
// tools, serve over StreamableHTTP" shape but drops the middleware —
// tools here only describe what payment is required; settlement still
// happens through the gateway's own challenge/settle HTTP routes.
type ToolServer struct {
	catalog   *Catalog
	builder   *challenge.Builder
	mcpServer *mcpserver.MCPServer
}

// NewToolServer registers the list_services and get_payment_requirements
// tools against catalog and builder.
func NewToolServer(catalog *Catalog, builder *challenge.Builder, name, version string) *ToolServer {
	s := &ToolServer{
		catalog:   catalog,
		builder:   builder,
		mcpServer: mcpserver.NewMCPServer(name, version),
	}

	s.mcpServer.AddTool(
		mcpproto.NewTool("list_services",
			mcpproto.WithDescription("List active, payable services in the gateway's catalog."),
		),
		s.handleListServices,
	)

	s.mcpServer.AddTool(
		mcpproto.NewTool("get_payment_requirements",
			mcpproto.WithDescription("Get the x402 payment requirements for a catalog service, to build a signed authorization."),
			mcpproto.WithString("service_id", mcpproto.Required(), mcpproto.Description("Catalog service identifier.")),
		),
		s.handleGetPaymentRequirements,
	)

	return s
}

// Handler returns the MCP server's streamable-HTTP transport.
func (s *ToolServer) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

func (s *ToolServer) handleListServices(ctx context.Context, _ mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	summaries, err := s.catalog.List(ctx)
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	body, err := json.Marshal(summaries)
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	return mcpproto.NewToolResultText(string(body)), nil
}

func (s *ToolServer) handleGetPaymentRequirements(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	serviceID, err := req.RequireString("service_id")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	svc, err := s.catalog.Services.Get(ctx, serviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return mcpproto.NewToolResultError("service not found"), nil
		}
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	if svc == nil || !svc.Active {
		return mcpproto.NewToolResultError("service not found"), nil
	}

	requirement := s.builder.Requirement(svc)
	body, err := json.Marshal(requirement)
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	return mcpproto.NewToolResultText(string(body)), nil
}
