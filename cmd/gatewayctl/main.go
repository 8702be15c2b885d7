// Command gatewayctl is the operator CLI for the x402 gateway: it
// performs the owner/provider-signed ServiceRegistry operations
// (register, deactivate, reactivate, update-price) and keeps the
// Postgres service mirror in sync, plus a ledger reconciliation check
// against the Escrow contract (spec.md §4.6, §9).
//
// Grounded on joelklabo-agentpay's cmd package (cobra rootCmd +
// subcommand registration via init()), since the teacher
// (mark3labs-x402-go) never ships its own CLI beyond its library API.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/kagenti-labs/x402-gateway/config"
	"github.com/kagenti-labs/x402-gateway/internal/contracts"
	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/storage/postgres"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/logger"
	"github.com/kagenti-labs/x402-gateway/retry"
)

var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "Operator CLI for the x402 gateway's ServiceRegistry and ledger",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ctlContext bundles the chain and database handles every subcommand
// needs; built fresh per invocation since gatewayctl is a one-shot CLI,
// not a long-lived server.
type ctlContext struct {
	cfg        *config.Config
	log        ctlLogger
	registry   *contracts.ServiceRegistryClient
	pool       *postgres.ServiceRepo
	opts       *bind.TransactOpts
	rawBackend contracts.Backend
}

type ctlLogger = interface {
	Info(format string, args ...interface{})
}

type stdoutLogger struct{}

func (stdoutLogger) Info(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }

func newCtlContext(ctx context.Context, ownerKeyHex string) (*ctlContext, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	backend, err := contracts.DialBackend(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("dialing chain: %w", err)
	}

	registry, err := contracts.NewServiceRegistryClient(backend, common.HexToAddress(cfg.Chain.ServiceRegistryAddress))
	if err != nil {
		return nil, fmt.Errorf("binding ServiceRegistry: %w", err)
	}

	key, err := crypto.HexToECDSA(ownerKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parsing owner private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.Chain.ChainID))
	if err != nil {
		return nil, fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx
	nonce, err := backend.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return nil, fmt.Errorf("fetching owner nonce: %w", err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	dbLog := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	pool, err := postgres.NewPool(ctx, cfg.Database, dbLog)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return &ctlContext{
		cfg:        cfg,
		log:        stdoutLogger{},
		registry:   registry,
		pool:       postgres.NewServiceRepo(pool),
		opts:       opts,
		rawBackend: backend,
	}, nil
}

// awaitReceipt polls for a mined receipt the same way the relayer
// engine's confirmation loop does, since an operator tool submitting a
// registry transaction is bound by the same eventual-consistency rules
// as a settlement.
func awaitReceipt(ctx context.Context, backend contracts.Backend, txHash common.Hash) (*types.Receipt, error) {
	return retry.WithRetry(ctx, retry.Config{
		MaxAttempts:  60,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.5,
	}, func(err error) bool { return err != nil }, func() (*types.Receipt, error) {
		return backend.TransactionReceipt(ctx, txHash)
	})
}

func init() {
	rootCmd.AddCommand(registerServiceCmd)
	rootCmd.AddCommand(deactivateServiceCmd)
	rootCmd.AddCommand(reactivateServiceCmd)
	rootCmd.AddCommand(updatePriceCmd)
	rootCmd.AddCommand(reconcileLedgerCmd)
}

var (
	flagOwnerKey     string
	flagServiceID    string
	flagProvider     string
	flagPrice        string
	flagName         string
	flagEndpoint     string
	flagKind         string
	flagDescription  string
)

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagOwnerKey, "owner-key", "", "hex-encoded private key authorized to call the registry (required)")
	_ = cmd.MarkFlagRequired("owner-key")
}

var registerServiceCmd = &cobra.Command{
	Use:   "register-service",
	Short: "Register a new service on-chain and mirror it into Postgres",
	RunE:  runRegisterService,
}

var deactivateServiceCmd = &cobra.Command{
	Use:   "deactivate-service",
	Short: "Deactivate a service on-chain and mirror the flag into Postgres",
	RunE:  runSetActive(false),
}

var reactivateServiceCmd = &cobra.Command{
	Use:   "reactivate-service",
	Short: "Reactivate a previously deactivated service",
	RunE:  runSetActive(true),
}

var updatePriceCmd = &cobra.Command{
	Use:   "update-price",
	Short: "Update a service's on-chain price and mirror it into Postgres",
	RunE:  runUpdatePrice,
}

var reconcileLedgerCmd = &cobra.Command{
	Use:   "reconcile-ledger",
	Short: "Compare the Postgres provider mirror against on-chain escrow balances",
	RunE:  runReconcileLedger,
}

func init() {
	addChainFlags(registerServiceCmd)
	registerServiceCmd.Flags().StringVar(&flagServiceID, "service-id", "", "service id (required)")
	registerServiceCmd.Flags().StringVar(&flagProvider, "provider", "", "provider wallet address (required)")
	registerServiceCmd.Flags().StringVar(&flagPrice, "price", "", "price in base token units (required)")
	registerServiceCmd.Flags().StringVar(&flagName, "name", "", "service name (required)")
	registerServiceCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "upstream URL (required for PROXY; empty for NATIVE)")
	registerServiceCmd.Flags().StringVar(&flagKind, "kind", "PROXY", "service kind: PROXY or NATIVE (HOSTED fails validation, since this command sets no stored content)")
	registerServiceCmd.Flags().StringVar(&flagDescription, "description", "", "human-readable description")
	for _, f := range []string{"service-id", "provider", "price", "name"} {
		_ = registerServiceCmd.MarkFlagRequired(f)
	}

	addChainFlags(deactivateServiceCmd)
	deactivateServiceCmd.Flags().StringVar(&flagServiceID, "service-id", "", "service id (required)")
	_ = deactivateServiceCmd.MarkFlagRequired("service-id")

	addChainFlags(reactivateServiceCmd)
	reactivateServiceCmd.Flags().StringVar(&flagServiceID, "service-id", "", "service id (required)")
	_ = reactivateServiceCmd.MarkFlagRequired("service-id")

	addChainFlags(updatePriceCmd)
	updatePriceCmd.Flags().StringVar(&flagServiceID, "service-id", "", "service id (required)")
	updatePriceCmd.Flags().StringVar(&flagPrice, "price", "", "new price in base token units (required)")
	_ = updatePriceCmd.MarkFlagRequired("service-id")
	_ = updatePriceCmd.MarkFlagRequired("price")

	reconcileLedgerCmd.Flags().StringVar(&flagProvider, "provider", "", "limit the check to a single provider address (optional)")
}

func runRegisterService(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc, err := newCtlContext(ctx, flagOwnerKey)
	if err != nil {
		return err
	}

	price, ok := new(big.Int).SetString(flagPrice, 10)
	if !ok {
		return fmt.Errorf("invalid --price %q: must be a base-10 integer", flagPrice)
	}

	idHash := domain.ServiceIDHash(flagServiceID)
	providerAddr := common.HexToAddress(flagProvider)

	// Commits to DB-insert-then-chain-register (DESIGN.md Open
	// Questions): a service visible in the catalog but not yet payable
	// on-chain fails closed (every /gateway call reverts at the
	// registry lookup), whereas the reverse — payable on-chain but
	// absent from the catalog a caller lists from — is the worse
	// failure mode, since nothing would ever surface the service to
	// be paid for in the first place.
	svc := &domain.Service{
		ID:              flagServiceID,
		ProviderAddress: domain.CanonicalAddress(flagProvider),
		Name:            flagName,
		Description:     flagDescription,
		Kind:            x402types.ServiceKind(strings.ToUpper(flagKind)),
		Endpoint:        flagEndpoint,
		PriceBaseUnits:  price,
		TokenAddress:    cc.cfg.Chain.TokenAddress,
		Active:          true,
	}
	if err := svc.Validate(cc.cfg.Server.BaseURL); err != nil {
		return fmt.Errorf("service record failed validation: %w", err)
	}
	if err := cc.pool.Create(ctx, svc); err != nil {
		return fmt.Errorf("mirroring into postgres: %w", err)
	}

	cc.log.Info("submitting register(%s, %s, %s, %q, %q)", flagServiceID, flagProvider, price, flagName, flagEndpoint)
	txHash, err := cc.registry.Register(ctx, cc.opts, 300_000, idHash, providerAddr, price, flagName, flagEndpoint)
	if err != nil {
		return rollbackCreate(ctx, cc, fmt.Errorf("submitting register tx: %w", err))
	}
	cc.log.Info("tx submitted: %s", txHash)

	receipt, err := awaitReceipt(ctx, cc.rawBackend, common.HexToHash(txHash))
	if err != nil {
		return rollbackCreate(ctx, cc, fmt.Errorf("awaiting confirmation: %w", err))
	}
	if receipt.Status == 0 {
		return rollbackCreate(ctx, cc, fmt.Errorf("register transaction reverted: %s", txHash))
	}

	cc.log.Info("service %s registered and mirrored (tx %s)", flagServiceID, txHash)
	return nil
}

// rollbackCreate deletes the postgres mirror row registered just
// before the on-chain call that subsequently failed, so the catalog
// never lists a service nothing can actually pay for. The rollback
// failure, if any, is reported alongside the original chain error
// rather than swallowed.
func rollbackCreate(ctx context.Context, cc *ctlContext, chainErr error) error {
	if err := cc.pool.Delete(ctx, flagServiceID); err != nil {
		return fmt.Errorf("%w (rollback of postgres mirror also failed: %v)", chainErr, err)
	}
	return fmt.Errorf("%w (postgres mirror rolled back)", chainErr)
}

func runSetActive(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cc, err := newCtlContext(ctx, flagOwnerKey)
		if err != nil {
			return err
		}

		idHash := domain.ServiceIDHash(flagServiceID)
		txHash, err := cc.registry.SetActive(ctx, cc.opts, 100_000, idHash, active)
		if err != nil {
			return fmt.Errorf("submitting setActive tx: %w", err)
		}

		receipt, err := awaitReceipt(ctx, cc.rawBackend, common.HexToHash(txHash))
		if err != nil {
			return fmt.Errorf("awaiting confirmation: %w", err)
		}
		if receipt.Status == 0 {
			return fmt.Errorf("setActive transaction reverted: %s", txHash)
		}

		if err := cc.pool.SetActive(ctx, flagServiceID, active); err != nil {
			return fmt.Errorf("on-chain setActive succeeded (tx %s) but mirroring into postgres failed: %w", txHash, err)
		}

		cc.log.Info("service %s active=%v (tx %s)", flagServiceID, active, txHash)
		return nil
	}
}

func runUpdatePrice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc, err := newCtlContext(ctx, flagOwnerKey)
	if err != nil {
		return err
	}

	price, ok := new(big.Int).SetString(flagPrice, 10)
	if !ok {
		return fmt.Errorf("invalid --price %q: must be a base-10 integer", flagPrice)
	}

	idHash := domain.ServiceIDHash(flagServiceID)
	txHash, err := cc.registry.UpdatePrice(ctx, cc.opts, 100_000, idHash, price)
	if err != nil {
		return fmt.Errorf("submitting updatePrice tx: %w", err)
	}

	receipt, err := awaitReceipt(ctx, cc.rawBackend, common.HexToHash(txHash))
	if err != nil {
		return fmt.Errorf("awaiting confirmation: %w", err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("updatePrice transaction reverted: %s", txHash)
	}

	if err := cc.pool.UpdatePrice(ctx, flagServiceID, price); err != nil {
		return fmt.Errorf("on-chain updatePrice succeeded (tx %s) but mirroring into postgres failed: %w", txHash, err)
	}

	cc.log.Info("service %s price updated to %s (tx %s)", flagServiceID, price, txHash)
	return nil
}

// runReconcileLedger compares each provider's Postgres mirror
// (total_earned - total_claimed) against escrow.providerBalances on
// chain. A mismatch means the mirror has drifted — from a crashed
// request between settlement and the off-chain increment, say — and
// needs an operator to investigate, not an automatic correction.
func runReconcileLedger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	backend, err := contracts.DialBackend(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		return fmt.Errorf("dialing chain: %w", err)
	}
	escrow, err := contracts.NewEscrowClient(backend, common.HexToAddress(cfg.Chain.EscrowAddress))
	if err != nil {
		return fmt.Errorf("binding Escrow: %w", err)
	}

	dbLog := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	pool, err := postgres.NewPool(ctx, cfg.Database, dbLog)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	providerRepo := postgres.NewProviderRepo(pool)

	addresses := []string{flagProvider}
	if flagProvider == "" {
		addresses, err = providerRepo.ListAddresses(ctx)
		if err != nil {
			return fmt.Errorf("listing providers: %w", err)
		}
	}

	mismatches := 0
	for _, addr := range addresses {
		provider, err := providerRepo.Get(ctx, addr)
		if err != nil {
			fmt.Printf("  %s: mirror read failed: %v\n", addr, err)
			continue
		}
		if provider == nil {
			fmt.Printf("  %s: no mirror row\n", addr)
			continue
		}
		mirrorClaimable := new(big.Int).Sub(provider.TotalEarned, provider.TotalClaimed)

		onChain, err := escrow.ProviderBalance(ctx, common.HexToAddress(addr))
		if err != nil {
			fmt.Printf("  %s: on-chain read failed: %v\n", addr, err)
			continue
		}

		if mirrorClaimable.Cmp(onChain) != 0 {
			mismatches++
			fmt.Printf("  MISMATCH %s: mirror=%s on-chain=%s\n", addr, mirrorClaimable, onChain)
		} else {
			fmt.Printf("  ok %s: %s\n", addr, onChain)
		}
	}

	if mismatches > 0 {
		return fmt.Errorf("%d provider(s) out of sync between the ledger mirror and on-chain escrow", mismatches)
	}
	fmt.Println("ledger reconciled, no mismatches")
	return nil
}
