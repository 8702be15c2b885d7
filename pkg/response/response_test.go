package response

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestErrorOmitsPaymentFieldByDefault(t *testing.T) {
	c, rec := newTestContext()
	Error(c, apperror.BadDestination())

	require.Equal(t, 400, rec.Code)
	require.JSONEq(t, `{"error":"authorization recipient is not the escrow contract","code":"BAD_DESTINATION"}`, rec.Body.String())
}

func TestErrorIncludesPaymentTxHashForUpstreamFailed(t *testing.T) {
	c, rec := newTestContext()
	Error(c, apperror.UpstreamFailed(errors.New("dial tcp: connection refused"), "0xdeadbeef"))

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"payment":{"txHash":"0xdeadbeef"}`)
}
