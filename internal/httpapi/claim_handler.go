package httpapi

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

type claimRequest struct {
	WalletAddress string `json:"wallet_address"`
	ProviderID    string `json:"provider_id"`
	Amount        string `json:"amount" binding:"required"`
}

// claim implements POST /claim (spec.md §4.6, §9): the relayer calls
// escrow.withdraw on the provider's behalf, distinct from the
// provider-initiated, provider-gas-paying claim() the contract also
// exposes. provider_id and wallet_address name the same thing — a
// Provider record is keyed only by address (spec.md §3) — so either
// field resolves the same way.
func (s *Server) claim(c *gin.Context) {
	ctx := c.Request.Context()

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidPayload(err))
		return
	}

	address := req.WalletAddress
	if address == "" {
		address = req.ProviderID
	}
	if address == "" {
		response.Error(c, apperror.InvalidPayload(errMissingProviderAddress{}))
		return
	}
	address = domain.CanonicalAddress(address)

	amount := mustBig(req.Amount)
	if amount.Sign() <= 0 {
		response.Error(c, apperror.InvalidPayload(errNonPositiveAmount{}))
		return
	}

	claimRecord := &domain.Claim{
		ProviderAddress: address,
		Amount:          amount,
		Status:          domain.ClaimPending,
		CreatedAt:       time.Now(),
	}
	if err := s.Claims.Create(ctx, claimRecord); err != nil {
		response.Error(c, apperror.Internal(err))
		return
	}

	settlement := s.Engine.Withdraw(ctx, s.Escrow, common.HexToAddress(address), amount)

	switch settlement.State {
	case relayer.StateReverted:
		_ = s.Claims.UpdateStatus(ctx, claimRecord.ID, domain.ClaimFailed, "")
		response.Error(c, settlement.Err)
		return
	case relayer.StateTimedOut:
		_ = s.Claims.UpdateStatus(ctx, claimRecord.ID, domain.ClaimPending, settlement.TxHash)
		c.JSON(202, gin.H{"code": "TIMED_OUT", "tx_hash": settlement.TxHash})
		return
	}

	if err := s.Claims.UpdateStatus(ctx, claimRecord.ID, domain.ClaimConfirmed, settlement.TxHash); err != nil {
		s.Log.Error().Err(err).Msg("failed to update claim status")
	}
	if err := s.Providers.IncrementClaimed(ctx, address, amount); err != nil {
		s.Log.Error().Err(err).Msg("failed to update provider claimed mirror")
	}

	response.OK(c, gin.H{"tx_hash": settlement.TxHash, "wallet_address": address, "amount": amount.String()})
}

type errMissingProviderAddress struct{}

func (errMissingProviderAddress) Error() string {
	return "either wallet_address or provider_id is required"
}

type errNonPositiveAmount struct{}

func (errNonPositiveAmount) Error() string { return "amount must be > 0" }
