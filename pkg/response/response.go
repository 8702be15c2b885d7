// Package response provides a consistent JSON envelope for gateway
// HTTP handlers, including the §7 error-kind surface.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// Error writes an AppError as the documented JSON error shape and
// aborts the Gin context so later handlers in the chain don't run.
// UPSTREAM_FAILED carries a non-empty TxHash (spec.md §7): the
// settlement already landed on-chain, so the envelope gains a
// `payment.txHash` field distinguishing paid-but-undelivered from the
// unpaid-refused case every other error kind represents.
func Error(c *gin.Context, err error) {
	ae := apperror.As(err)
	body := gin.H{
		"error": ae.Message,
		"code":  ae.Code,
	}
	if ae.TxHash != "" {
		body["payment"] = gin.H{"txHash": ae.TxHash}
	}
	c.AbortWithStatusJSON(ae.HTTPStatus, body)
}

// Challenge writes a 402 response carrying the payment requirements,
// the only response that is not an error in the taxonomy sense.
func Challenge(c *gin.Context, body any) {
	c.JSON(http.StatusPaymentRequired, body)
}

// OK writes a 200 JSON response.
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
