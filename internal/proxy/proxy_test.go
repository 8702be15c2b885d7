package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

func TestDispatchHostedStampsTxHash(t *testing.T) {
	p := NewProxier(time.Second)
	svc := &domain.Service{Kind: x402types.KindHosted, Content: []byte(`{"weather":"sunny"}`)}

	res, err := p.Dispatch(context.Background(), svc, "0xpayer", "0xabc", "GET", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), `"txHash":"0xabc"`)
	require.Contains(t, string(res.Body), `"weather":"sunny"`)
}

func TestDispatchProxyForwardsHeadersAndStampsTxHash(t *testing.T) {
	var gotPayer, gotTxHash string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPayer = r.Header.Get("X-402-Payer")
		gotTxHash = r.Header.Get("X-402-TxHash")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":42}`))
	}))
	defer upstream.Close()

	p := NewProxier(time.Second)
	svc := &domain.Service{Kind: x402types.KindProxy, Endpoint: upstream.URL}

	res, err := p.Dispatch(context.Background(), svc, "0xpayer", "0xdeadbeef", "GET", nil)
	require.NoError(t, err)
	require.Equal(t, "0xpayer", gotPayer)
	require.Equal(t, "0xdeadbeef", gotTxHash)
	require.Contains(t, string(res.Body), `"txHash":"0xdeadbeef"`)
	require.Contains(t, string(res.Body), `"result":42`)
}

func TestDispatchProxyUpstreamFailureReportsSettlementEvidence(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	p := NewProxier(time.Second)
	svc := &domain.Service{Kind: x402types.KindProxy, Endpoint: upstream.URL}

	_, err := p.Dispatch(context.Background(), svc, "0xpayer", "0xdeadbeef", "GET", nil)
	require.Error(t, err)
	ae := apperror.As(err)
	require.Equal(t, "UPSTREAM_FAILED", ae.Code)
	require.Equal(t, "0xdeadbeef", ae.TxHash, "caller must be able to prove the payment landed even though upstream failed")
}

func TestDispatchNativeIsNotMediated(t *testing.T) {
	p := NewProxier(time.Second)
	svc := &domain.Service{Kind: x402types.KindNative}

	_, err := p.Dispatch(context.Background(), svc, "0xpayer", "0xabc", "GET", nil)
	require.Error(t, err)
	ae := apperror.As(err)
	require.Equal(t, "NATIVE_NOT_MEDIATED", ae.Code)
}
