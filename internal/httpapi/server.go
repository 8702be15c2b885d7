// Package httpapi wires the gateway's full HTTP surface (spec.md §6)
// onto Gin: the protected gateway endpoint, the agent-facing catalog
// and execute shortcut, the verify-payment delegation endpoint,
// provider claims, revenue reads, and discovery (plain JSON manifest
// plus the MCP tool server).
package httpapi

import (
	"math/big"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kagenti-labs/x402-gateway/internal/challenge"
	"github.com/kagenti-labs/x402-gateway/internal/contracts"
	"github.com/kagenti-labs/x402-gateway/internal/discovery"
	"github.com/kagenti-labs/x402-gateway/internal/httpapi/middleware"
	"github.com/kagenti-labs/x402-gateway/internal/ledger"
	"github.com/kagenti-labs/x402-gateway/internal/proxy"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/storage/postgres"
	"github.com/kagenti-labs/x402-gateway/internal/storage/redisstore"
	"github.com/kagenti-labs/x402-gateway/internal/verifier"
)

// Server bundles every dependency a handler needs. It holds no mutable
// state of its own beyond what its fields already own (the relayer's
// nonce pool, the DB pools, the Redis client); Server itself is safe
// to share across goroutines.
type Server struct {
	Log zerolog.Logger

	BaseURL      string
	Network      string
	TokenAddress string

	Services  *postgres.ServiceRepo
	Providers *postgres.ProviderRepo
	Claims    *postgres.ClaimRepo

	Catalog   *discovery.Catalog
	MCP       *discovery.ToolServer
	Challenge *challenge.Builder
	Verifier  *verifier.Verifier
	Engine    *relayer.Engine
	Ledger    *ledger.Ledger
	Proxy     *proxy.Proxier
	Escrow    *contracts.EscrowClient

	RateLimiter *redisstore.RateLimiter
	Blacklist   *redisstore.Blacklist
	Idempotency *redisstore.IdempotencyCache

	// HealthCheckers back GET /health: pool, Redis, and chain RPC
	// liveness (SPEC_FULL.md §6.1).
	HealthCheckers []HealthChecker
	// Metrics is the registry GET /metrics exposes via promhttp; nil
	// disables the route.
	Metrics *prometheus.Registry

	// OptimisticSettlement gates the rate-limit/blacklist/idempotency
	// checks, per spec.md §5: they are only required when the relayer
	// answers before confirmation.
	OptimisticSettlement bool
	RequestsPerMinute    int64
	IdempotencyTTL       time.Duration

	// FeeBasisPoints is chain.platform_fee_percent converted to basis
	// points out of 10000 for ledger.Split.
	FeeBasisPoints *big.Int
}

// NewRouter builds the Gin engine and registers every route named in
// spec.md §6.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.Log), middleware.RequestLogger(s.Log))
	if s.Metrics != nil {
		r.Use(middleware.Metrics(s.Metrics))
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{})))
	}
	r.GET("/health", s.health)

	r.GET("/services", s.listServices)
	r.GET("/services/:id", s.getService)
	r.GET("/agent/services", s.listAgentServices)
	r.GET("/agent/services/:id", s.getAgentService)

	r.GET("/gateway/:id", s.gateway)
	r.POST("/gateway/:id", s.gateway)

	r.POST("/agent/execute", s.agentExecute)
	r.POST("/verify-payment", s.verifyPayment)
	r.POST("/claim", s.claim)

	r.GET("/revenue/wallet", s.revenueWallet)
	r.GET("/revenue/:provider_id", s.revenueProvider)

	r.GET("/.well-known/ai-plugin.json", s.pluginManifest)
	if s.MCP != nil {
		r.Any("/mcp", gin.WrapH(s.MCP.Handler()))
	}

	return r
}
