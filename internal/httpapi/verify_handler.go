package httpapi

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/codec"
	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/verifier"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

type verifyPaymentRequest struct {
	PaymentSignature string `json:"payment_signature" binding:"required"`
	ServiceID        string `json:"service_id"`
	ProviderID       string `json:"provider_id"`
	Amount           string `json:"amount" binding:"required"`
}

// verifyPayment implements POST /verify-payment (spec.md §4.1, §6): a
// delegation endpoint for an external service that would rather offload
// verify+settle than embed the relayer itself. With service_id bound,
// it runs the same processor path as the gateway route; without one,
// it falls back to the legacy direct-token path (spec.md §9), which
// moves funds straight to whatever `to` the caller's own authorization
// names and never credits the provider ledger.
func (s *Server) verifyPayment(c *gin.Context) {
	ctx := c.Request.Context()

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidPayload(err))
		return
	}

	decoded, err := codec.Decode(req.PaymentSignature)
	if err != nil {
		response.Error(c, err)
		return
	}

	var (
		svc        *domain.Service
		payer      common.Address
		settlement *relayer.Settlement
	)

	if req.ServiceID != "" {
		svc, err = s.lookupActiveService(c, req.ServiceID)
		if err != nil {
			response.Error(c, err)
			return
		}
		requirement := s.Challenge.Requirement(svc)
		if decoded.Accepted != nil {
			if err := codec.ValidateEcho(decoded, requirement); err != nil {
				response.Error(c, err)
				return
			}
		}
		payer, err = s.Verifier.Verify(ctx, decoded.Authorization, requirement)
		if err != nil {
			response.Error(c, err)
			return
		}
		settlement = s.Engine.SettleProcessor(ctx, svc, decoded.Authorization, payer)
	} else {
		s.Log.Warn().Str("provider_id", req.ProviderID).Msg("verify-payment falling back to legacy direct-token settlement; provider ledger will not be credited")
		requirement := s.legacyRequirement(decoded)

		// The legacy path has no processor contract to ask about nonce
		// freshness, only the on-chain authorizationState it itself
		// consumes; the relayer's own submission still reverts on replay.
		legacyVerifier := &verifier.Verifier{ChainID: s.Verifier.ChainID}
		payer, err = legacyVerifier.Verify(ctx, decoded.Authorization, requirement)
		if err != nil {
			response.Error(c, err)
			return
		}
		settlement = s.Engine.SettleLegacy(ctx, decoded.Authorization, payer)
	}

	if settlement.State == relayer.StateReverted {
		response.Error(c, settlement.Err)
		return
	}
	if settlement.State == relayer.StateTimedOut {
		response.OK(c, gin.H{"valid": false, "tx_hash": settlement.TxHash, "payer": payer.Hex(), "code": "TIMED_OUT"})
		return
	}

	providerRevenue, platformFee, err := s.recordSettlement(ctx, svc, payer.Hex(), settlement, mustBig(req.Amount))
	if err != nil {
		s.Log.Error().Err(err).Msg("failed to record verify-payment settlement in ledger mirror")
	}

	response.OK(c, gin.H{
		"valid":            true,
		"tx_hash":          settlement.TxHash,
		"payer":            payer.Hex(),
		"platform_fee":     platformFee.String(),
		"provider_revenue": providerRevenue.String(),
	})
}

// legacyRequirement builds a synthetic requirement for the
// no-service-binding path: the echoed `accepted` block if the caller
// sent tunnel-mode, falling back to the gateway's configured token so
// the EIP-712 domain still resolves.
func (s *Server) legacyRequirement(decoded *codec.Decoded) x402types.PaymentRequirement {
	if decoded.Accepted != nil {
		req := *decoded.Accepted
		req.PayTo = decoded.Authorization.To
		req.MaxAmountRequired = decoded.Authorization.Value
		return req
	}
	return x402types.PaymentRequirement{
		PayTo:             decoded.Authorization.To,
		MaxAmountRequired: decoded.Authorization.Value,
		Asset:             s.TokenAddress,
		Extra: x402types.RequirementExtra{
			Symbol:    s.Challenge.TokenSymbol,
			Decimals:  s.Challenge.TokenDecimals,
			TokenName: s.Challenge.TokenName,
		},
	}
}
