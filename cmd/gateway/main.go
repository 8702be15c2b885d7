package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kagenti-labs/x402-gateway/config"
	"github.com/kagenti-labs/x402-gateway/internal/challenge"
	"github.com/kagenti-labs/x402-gateway/internal/contracts"
	"github.com/kagenti-labs/x402-gateway/internal/discovery"
	"github.com/kagenti-labs/x402-gateway/internal/httpapi"
	"github.com/kagenti-labs/x402-gateway/internal/ledger"
	"github.com/kagenti-labs/x402-gateway/internal/proxy"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/storage/migrations"
	"github.com/kagenti-labs/x402-gateway/internal/storage/postgres"
	"github.com/kagenti-labs/x402-gateway/internal/storage/redisstore"
	"github.com/kagenti-labs/x402-gateway/internal/verifier"
	"github.com/kagenti-labs/x402-gateway/pkg/logger"
)

const (
	maxInFlightNonces = 16
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Int("port", cfg.Server.Port).
		Int64("chain_id", cfg.Chain.ChainID).
		Bool("optimistic_settlement", cfg.Chain.OptimisticSettlement).
		Msg("starting x402 gateway")

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	if err := migrations.Up(cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	rdb, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	backend, err := contracts.DialBackend(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial chain RPC")
	}
	log.Info().Msg("chain RPC connected")

	// ServiceRegistry is only mutated by cmd/gatewayctl's
	// register/deactivate/update-price operators; the HTTP gateway
	// reads the Postgres mirror exclusively and never binds it.
	escrowClient, err := contracts.NewEscrowClient(backend, common.HexToAddress(cfg.Chain.EscrowAddress))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind Escrow contract")
	}

	processorClient, err := contracts.NewPaymentProcessorClient(backend, common.HexToAddress(cfg.Chain.PaymentProcessorAddress))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind PaymentProcessor contract")
	}

	tokenClient, err := contracts.NewTokenClient(backend, common.HexToAddress(cfg.Chain.TokenAddress))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind token contract")
	}

	confirmationPolicy := relayer.PolicyOneConfirmation
	if cfg.Chain.OptimisticSettlement {
		confirmationPolicy = relayer.PolicyOptimistic
	}

	engine, err := relayer.NewEngine(
		ctx,
		backend,
		processorClient,
		tokenClient,
		cfg.Chain.RelayerPrivateKey,
		big.NewInt(cfg.Chain.ChainID),
		maxInFlightNonces,
		confirmationPolicy,
		cfg.Chain.ConfirmationTimeout,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start relayer engine")
	}
	log.Info().Str("relayer_address", engine.Address.Hex()).Msg("relayer identity loaded")

	serviceRepo := postgres.NewServiceRepo(pool)
	providerRepo := postgres.NewProviderRepo(pool)
	claimRepo := postgres.NewClaimRepo(pool)
	accessLogRepo := postgres.NewAccessLogRepo(pool)

	challengeBuilder := &challenge.Builder{
		BaseURL:       cfg.Server.BaseURL,
		EscrowAddress: cfg.Chain.EscrowAddress,
		ChainID:       cfg.Chain.ChainID,
		TokenSymbol:   cfg.Chain.TokenSymbol,
		TokenDecimals: int(cfg.Chain.TokenDecimals),
		TokenName:     cfg.Chain.TokenName,
		MaxTimeout:    300,
	}

	paymentVerifier := &verifier.Verifier{
		ChainID:      big.NewInt(cfg.Chain.ChainID),
		NonceChecker: processorClient,
	}

	gatewayLedger := &ledger.Ledger{
		Logs:      accessLogRepo,
		Providers: providerRepo,
		Escrow:    escrowClient,
	}

	// Reconcile runs from the engine's background confirmation watcher
	// (PolicyOptimistic only), never on the request path, so it gets
	// its own context rather than reusing one a client may have
	// already cancelled.
	engine.Reconcile = func(ctx context.Context, s *relayer.Settlement) {
		if err := gatewayLedger.ReverseSettlement(ctx, s.TxHash); err != nil {
			log.Error().Err(err).Str("tx_hash", s.TxHash).Msg("failed to reconcile reverted optimistic settlement")
		}
	}

	catalog := &discovery.Catalog{Services: serviceRepo}
	toolServer := discovery.NewToolServer(catalog, challengeBuilder, "x402-gateway", "1.0.0")

	var (
		rateLimiter *redisstore.RateLimiter
		blacklist   *redisstore.Blacklist
		idempotency *redisstore.IdempotencyCache
	)
	if cfg.Chain.OptimisticSettlement {
		rateLimiter = redisstore.NewRateLimiter(rdb)
		blacklist = redisstore.NewBlacklist(rdb)
		idempotency = redisstore.NewIdempotencyCache(rdb, cfg.Chain.ConfirmationTimeout)
	}

	feeBasisPoints := big.NewInt(int64(cfg.Chain.PlatformFeePercent * 10000))

	healthCheckers := []httpapi.HealthChecker{
		postgres.NewHealthCheck(pool),
		redisstore.NewHealthCheck(rdb),
		contracts.NewHealthCheck(backend),
	}
	metricsRegistry := prometheus.NewRegistry()

	server := &httpapi.Server{
		Log: log,

		BaseURL:      cfg.Server.BaseURL,
		Network:      fmt.Sprintf("eip155:%d", cfg.Chain.ChainID),
		TokenAddress: cfg.Chain.TokenAddress,

		Services:  serviceRepo,
		Providers: providerRepo,
		Claims:    claimRepo,

		Catalog:   catalog,
		MCP:       toolServer,
		Challenge: challengeBuilder,
		Verifier:  paymentVerifier,
		Engine:    engine,
		Ledger:    gatewayLedger,
		Proxy:     proxy.NewProxier(cfg.Chain.RPCTimeout),
		Escrow:    escrowClient,

		RateLimiter: rateLimiter,
		Blacklist:   blacklist,
		Idempotency: idempotency,

		OptimisticSettlement: cfg.Chain.OptimisticSettlement,
		RequestsPerMinute:    60,
		IdempotencyTTL:       cfg.Chain.ConfirmationTimeout,

		FeeBasisPoints: feeBasisPoints,

		HealthCheckers: healthCheckers,
		Metrics:        metricsRegistry,
	}

	router := httpapi.NewRouter(server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if drained := waitWithTimeout(engine.Watchers, shutdownTimeout); !drained {
		log.Warn().Msg("shutdown deadline hit before all confirmation watchers drained")
	}

	log.Info().Msg("server exited")
}

// waitWithTimeout reports whether wg finished within timeout. The
// watcher goroutines it drains never touch a request context (they
// outlive it), so shutdown needs its own bound on how long to wait for
// them instead of blocking forever.
func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
