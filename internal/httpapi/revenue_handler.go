package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

// revenueWallet implements GET /revenue/wallet?address=W (spec.md
// §4.7, §6): reads escrow.providerBalances directly, bypassing the DB
// mirror so the caller always sees on-chain truth. claimable_balance
// and raw_balance both name the same providerBalances read — the
// ledger exposes no separate "reserved but not yet claimable" concept
// (spec.md §3 defines only one provider balance), so the two fields
// are always equal here.
func (s *Server) revenueWallet(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		response.Error(c, apperror.InvalidPayload(errMissingAddress{}))
		return
	}

	balance, err := s.Ledger.WalletRevenue(c.Request.Context(), address)
	if err != nil {
		response.Error(c, apperror.Internal(err))
		return
	}

	response.OK(c, gin.H{
		"claimable_balance": balance.String(),
		"raw_balance":       balance.String(),
		"source":            "on-chain",
	})
}

// revenueProvider implements GET /revenue/{provider_id} (spec.md §4.7,
// §6): the DB mirror's running totals plus the live on-chain override.
func (s *Server) revenueProvider(c *gin.Context) {
	summary, err := s.Ledger.ProviderRevenue(c.Request.Context(), c.Param("provider_id"))
	if err != nil {
		response.Error(c, apperror.Internal(err))
		return
	}

	response.OK(c, gin.H{
		"provider_id":        summary.Address,
		"total_earned":       summary.TotalEarned.String(),
		"total_claimed":      summary.TotalClaimed.String(),
		"claimable_on_chain": summary.ClaimableOnChain.String(),
	})
}

type errMissingAddress struct{}

func (errMissingAddress) Error() string { return "address query parameter is required" }
