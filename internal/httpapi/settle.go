package httpapi

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/ledger"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

// settle picks the processor-routed path when a service is bound and a
// processor binding is configured. It falls back to the legacy
// direct-token path when no processor is configured or when svc is nil
// (a /verify-payment call without service_id).
func (s *Server) settle(ctx context.Context, svc *domain.Service, auth x402types.Authorization, payer common.Address) *relayer.Settlement {
	if svc != nil && s.Engine.Processor != nil {
		return s.Engine.SettleProcessor(ctx, svc, auth, payer)
	}
	return s.Engine.SettleLegacy(ctx, auth, payer)
}

// recordSettlement splits amount per the configured platform fee and
// appends the access log / provider credit. Called only once a
// settlement has left StateVerified (spec.md §4.7): StateSubmitted
// under the optimistic policy, or StateConfirmed otherwise.
func (s *Server) recordSettlement(ctx context.Context, svc *domain.Service, payer string, settlement *relayer.Settlement, amount *big.Int) (providerRevenue, platformFee *big.Int, err error) {
	providerRevenue, platformFee = ledger.Split(amount, s.FeeBasisPoints)

	serviceID := ""
	providerAddress := ""
	if svc != nil {
		serviceID = svc.ID
		providerAddress = svc.ProviderAddress
	}

	log := domain.AccessLog{
		ID:              uuid.NewString(),
		ServiceID:       serviceID,
		CallerAddress:   payer,
		ProviderAddress: providerAddress,
		Amount:          amount,
		ProviderRevenue: providerRevenue,
		PlatformFee:     platformFee,
		TxHash:          settlement.TxHash,
		SettlementMode:  settlement.Mode,
		CreatedAt:       time.Now(),
	}
	err = s.Ledger.RecordSettlement(ctx, log)
	return
}

// mustBig parses a decimal string already validated upstream (by the
// codec or verifier) into a big.Int, defaulting to zero on a value
// that somehow still isn't one rather than panicking deep in a
// handler.
func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
