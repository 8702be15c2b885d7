// Package proxy implements the upstream dispatch step (spec.md §4.8):
// once a payment has settled, HOSTED services return their stored
// content, PROXY services are forwarded to, and NATIVE services are
// rejected since they are never mediated by this gateway.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// Result is what the gateway router writes back to the caller.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Proxier dispatches to a service's backend after settlement. There is
// no retry on upstream failure (spec.md §4.8): the payment has already
// settled, so a retried call risks double-billing the caller for a
// single logical request.
type Proxier struct {
	HTTPClient *http.Client
}

// NewProxier builds a Proxier with a bounded-timeout HTTP client,
// since an upstream that hangs forever must not hold the relayer's
// goroutine budget hostage.
func NewProxier(timeout time.Duration) *Proxier {
	return &Proxier{HTTPClient: &http.Client{Timeout: timeout}}
}

// Dispatch serves svc after a successful settlement, stamping txHash
// and payer evidence onto the response per spec.md §4.8. method and
// body are inherited from the gateway call (spec.md §4.1); PROXY
// forwards them upstream verbatim, HOSTED ignores them entirely.
func (p *Proxier) Dispatch(ctx context.Context, svc *domain.Service, payer, txHash, method string, body []byte) (*Result, error) {
	switch svc.Kind {
	case x402types.KindHosted:
		return p.serveHosted(svc, txHash)
	case x402types.KindProxy:
		return p.serveProxy(ctx, svc, payer, txHash, method, body)
	case x402types.KindNative:
		return nil, apperror.NativeNotMediated()
	default:
		return nil, apperror.Internal(errUnknownKind(svc.Kind))
	}
}

func (p *Proxier) serveHosted(svc *domain.Service, txHash string) (*Result, error) {
	body, err := stampTxHash(svc.Content, txHash)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &Result{StatusCode: http.StatusOK, ContentType: "application/json", Body: body}, nil
}

func (p *Proxier) serveProxy(ctx context.Context, svc *domain.Service, payer, txHash, method string, body []byte) (*Result, error) {
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, svc.Endpoint, bodyReader)
	if err != nil {
		return nil, apperror.UpstreamFailed(err, txHash)
	}
	req.Header.Set("X-402-Payer", payer)
	req.Header.Set("X-402-TxHash", txHash)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, apperror.UpstreamFailed(err, txHash)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.UpstreamFailed(err, txHash)
	}
	if resp.StatusCode >= 400 {
		return nil, apperror.UpstreamFailed(errUpstreamStatus(resp.StatusCode), txHash)
	}

	merged, err := stampTxHash(raw, txHash)
	if err != nil {
		// Upstream didn't return JSON; pass the body through unmodified
		// rather than failing a call that already settled on-chain.
		return &Result{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: raw}, nil
	}
	return &Result{StatusCode: resp.StatusCode, ContentType: "application/json", Body: merged}, nil
}

// stampTxHash merges {"txHash": txHash} into a JSON object body,
// giving every successful response the settlement evidence the caller
// needs without requiring every service author to do it themselves.
func stampTxHash(body []byte, txHash string) ([]byte, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	obj["txHash"] = txHash
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type errUnknownKindT struct{ kind x402types.ServiceKind }

func (e errUnknownKindT) Error() string { return "unknown service kind: " + string(e.kind) }

func errUnknownKind(kind x402types.ServiceKind) error { return errUnknownKindT{kind} }

type errUpstreamStatusT struct{ status int }

func (e errUpstreamStatusT) Error() string {
	return http.StatusText(e.status)
}

func errUpstreamStatus(status int) error { return errUpstreamStatusT{status} }
