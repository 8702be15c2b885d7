package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/codec"
	"github.com/kagenti-labs/x402-gateway/internal/httpapi/middleware"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/storage/redisstore"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

// gateway implements GET|POST /gateway/{service_id}, the protected
// entry point (spec.md §4.1): challenge when unpaid, verify+settle+
// dispatch when a payment-signature header is present.
func (s *Server) gateway(c *gin.Context) {
	ctx := c.Request.Context()

	svc, err := s.lookupActiveService(c, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if svc.Kind == x402types.KindNative {
		response.Error(c, apperror.NativeNotMediated())
		return
	}

	requirement := s.Challenge.Requirement(svc)

	header := c.GetHeader(codec.HeaderName)
	if header == "" {
		response.Challenge(c, s.Challenge.Challenge(svc))
		return
	}

	decoded, err := codec.Decode(header)
	if err != nil {
		response.Error(c, err)
		return
	}
	if decoded.Accepted != nil {
		if err := codec.ValidateEcho(decoded, requirement); err != nil {
			response.Error(c, err)
			return
		}
	}

	payer, err := s.Verifier.Verify(ctx, decoded.Authorization, requirement)
	if err != nil {
		response.Error(c, err)
		return
	}

	var idemKey string
	if s.OptimisticSettlement && s.Idempotency != nil {
		idemKey = redisstore.EnvelopeKey(header)
		if err := s.Idempotency.Reserve(ctx, idemKey); err != nil {
			if err == redisstore.ErrInFlight {
				response.Error(c, apperror.SettlementInFlight())
				return
			}
			response.Error(c, apperror.Internal(err))
			return
		}
	}

	if s.OptimisticSettlement {
		if err := middleware.PayerGate(ctx, s.RateLimiter, s.Blacklist, payer.Hex(), s.RequestsPerMinute); err != nil {
			response.Error(c, err)
			return
		}
	}

	settlement := s.settle(ctx, svc, decoded.Authorization, payer)
	s.finishIdempotency(ctx, idemKey, settlement)

	switch settlement.State {
	case relayer.StateReverted:
		response.Error(c, settlement.Err)
		return
	case relayer.StateTimedOut:
		c.JSON(http.StatusAccepted, gin.H{
			"code":    "TIMED_OUT",
			"message": "confirmation wait exceeded; the transaction may still mine",
			"txHash":  settlement.TxHash,
		})
		return
	}

	if _, _, err := s.recordSettlement(ctx, svc, payer.Hex(), settlement, mustBig(requirement.MaxAmountRequired)); err != nil {
		s.Log.Error().Err(err).Str("service_id", svc.ID).Msg("failed to record settlement in ledger mirror")
	}

	body, _ := io.ReadAll(c.Request.Body)
	result, err := s.Proxy.Dispatch(ctx, svc, payer.Hex(), settlement.TxHash, c.Request.Method, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(result.StatusCode, result.ContentType, result.Body)
}

// finishIdempotency records the outcome under key, which keeps the key
// held for the cache TTL: a retried envelope within that TTL is refused
// with SETTLEMENT_IN_FLIGHT instead of resubmitting. The stored outcome
// is not replayed to the retry.
func (s *Server) finishIdempotency(ctx context.Context, key string, settlement *relayer.Settlement) {
	if key == "" || s.Idempotency == nil {
		return
	}
	if err := s.Idempotency.Complete(ctx, key, settlement); err != nil {
		s.Log.Warn().Err(err).Msg("failed to record idempotency outcome")
	}
}
