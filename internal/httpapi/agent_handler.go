package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/httpapi/middleware"
	"github.com/kagenti-labs/x402-gateway/internal/relayer"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

// agentSignature mirrors the snake_case wire shape spec.md §6 gives
// POST /agent/execute, distinct from x402types.Authorization's
// camelCase JSON tags used by the tunnel envelope.
type agentSignature struct {
	From        string `json:"from" binding:"required"`
	To          string `json:"to" binding:"required"`
	Value       string `json:"value" binding:"required"`
	ValidAfter  string `json:"valid_after" binding:"required"`
	ValidBefore string `json:"valid_before" binding:"required"`
	Nonce       string `json:"nonce" binding:"required"`
	V           uint8  `json:"v"`
	R           string `json:"r" binding:"required"`
	S           string `json:"s" binding:"required"`
}

func (a agentSignature) toAuthorization() x402types.Authorization {
	return x402types.Authorization{
		From: a.From, To: a.To, Value: a.Value,
		ValidAfter: a.ValidAfter, ValidBefore: a.ValidBefore,
		Nonce: a.Nonce, V: a.V, R: a.R, S: a.S,
	}
}

type agentExecuteRequest struct {
	ServiceID     string          `json:"service_id" binding:"required"`
	WalletAddress string          `json:"wallet_address"`
	Signature     agentSignature  `json:"signature" binding:"required"`
	RequestBody   json.RawMessage `json:"request_body"`
}

// agentExecute implements POST /agent/execute (spec.md §4.1, §6): a
// single-shot settle+invoke for callers that would rather not drive
// the challenge/retry dance themselves.
func (s *Server) agentExecute(c *gin.Context) {
	ctx := c.Request.Context()

	var req agentExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidPayload(err))
		return
	}

	svc, err := s.lookupActiveService(c, req.ServiceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if svc.Kind == x402types.KindNative {
		response.Error(c, apperror.NativeNotMediated())
		return
	}

	requirement := s.Challenge.Requirement(svc)
	auth := req.Signature.toAuthorization()

	payer, err := s.Verifier.Verify(ctx, auth, requirement)
	if err != nil {
		response.Error(c, err)
		return
	}

	if s.OptimisticSettlement {
		if err := middleware.PayerGate(ctx, s.RateLimiter, s.Blacklist, payer.Hex(), s.RequestsPerMinute); err != nil {
			response.Error(c, err)
			return
		}
	}

	settlement := s.settle(ctx, svc, auth, payer)
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

	method := http.MethodGet
	var body []byte
	if len(req.RequestBody) > 0 {
		method = http.MethodPost
		body = req.RequestBody
	}

	result, err := s.Proxy.Dispatch(ctx, svc, payer.Hex(), settlement.TxHash, method, body)
	if err != nil {
		response.Error(c, err)
		return
	}

	var upstream any
	if jsonErr := json.Unmarshal(result.Body, &upstream); jsonErr != nil {
		upstream = string(result.Body)
	}

	response.OK(c, gin.H{
		"payment": gin.H{
			"txHash":   settlement.TxHash,
			"payer":    payer.Hex(),
			"amount":   requirement.MaxAmountRequired,
			"receiver": requirement.PayTo,
		},
		"service": gin.H{
			"id":       svc.ID,
			"name":     svc.Name,
			"endpoint": svc.Endpoint,
		},
		"response": upstream,
	})
}
