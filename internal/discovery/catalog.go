// Package discovery implements the agent-facing catalog surface
// (spec.md §4.9): plain HTTP JSON listing/lookup, a
// .well-known/ai-plugin.json manifest, and an MCP tool server so an
// agent framework can browse and pay for services without hand-rolling
// HTTP client code.
package discovery

import (
	"context"
	"errors"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
)

// ServiceLister is the read surface the catalog needs from storage.
type ServiceLister interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.Service, error)
	Get(ctx context.Context, serviceID string) (*domain.Service, error)
}

// Catalog serves the service listing, shared by the plain-HTTP routes
// and the MCP tool server so both surfaces see identical data.
type Catalog struct {
	Services ServiceLister
}

// ServiceSummary is the agent-facing projection of a service: price
// and kind, but never Content (HOSTED payloads are only released
// after settlement).
type ServiceSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Kind        string `json:"kind"`
	Endpoint    string `json:"endpoint,omitempty"`
}

func summarize(svc *domain.Service) ServiceSummary {
	return ServiceSummary{
		ID:          svc.ID,
		Name:        svc.Name,
		Description: svc.Description,
		Price:       svc.PriceBaseUnits.String(),
		Kind:        string(svc.Kind),
		Endpoint:    svc.Endpoint,
	}
}

// List returns every active service's summary.
func (c *Catalog) List(ctx context.Context) ([]ServiceSummary, error) {
	services, err := c.Services.List(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceSummary, 0, len(services))
	for _, svc := range services {
		out = append(out, summarize(svc))
	}
	return out, nil
}

// Get returns one service's summary, or nil if not found or inactive.
func (c *Catalog) Get(ctx context.Context, serviceID string) (*ServiceSummary, error) {
	svc, err := c.Services.Get(ctx, serviceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if svc == nil || !svc.Active {
		return nil, nil
	}
	s := summarize(svc)
	return &s, nil
}
