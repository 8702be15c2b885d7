package httpapi

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
	"github.com/kagenti-labs/x402-gateway/pkg/response"
)

// catalogEntry is the free, public shape returned by GET /services and
// GET /services/{id}: enough for a human browser or a simple HTTP
// client to decide whether to pay, without exposing HOSTED content
// before settlement (spec.md §4.1).
type catalogEntry struct {
	ID                 string                        `json:"id"`
	Name               string                        `json:"name"`
	Description        string                        `json:"description"`
	Kind               string                         `json:"kind"`
	PaymentRequirements x402types.PaymentRequirement `json:"paymentRequirements"`
}

func (s *Server) toCatalogEntry(svc *domain.Service) catalogEntry {
	return catalogEntry{
		ID:                  svc.ID,
		Name:                svc.Name,
		Description:         svc.Description,
		Kind:                string(svc.Kind),
		PaymentRequirements: s.Challenge.Requirement(svc),
	}
}

// signingInfo carries everything a signer needs to build the
// EIP-712 typed-data request without an extra round trip, per
// spec.md §6's "EIP-712 domain and types needed to sign".
type signingInfo struct {
	Domain      eip712Domain `json:"domain"`
	PrimaryType string       `json:"primaryType"`
	Types       []eip712Field `json:"types"`
}

type eip712Domain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           int64  `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type eip712Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) signingInfoFor(svc *domain.Service) signingInfo {
	return signingInfo{
		Domain: eip712Domain{
			Name:              s.Challenge.TokenName,
			Version:           "1",
			ChainID:           s.Challenge.ChainID,
			VerifyingContract: svc.TokenAddress,
		},
		PrimaryType: "ReceiveWithAuthorization",
		Types: []eip712Field{
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		},
	}
}

type agentCatalogEntry struct {
	catalogEntry
	SigningInfo  signingInfo `json:"signingInfo"`
	ExecutePath  string      `json:"executePath"`
}

func (s *Server) toAgentEntry(svc *domain.Service) agentCatalogEntry {
	return agentCatalogEntry{
		catalogEntry: s.toCatalogEntry(svc),
		SigningInfo:  s.signingInfoFor(svc),
		ExecutePath:  "/agent/execute",
	}
}

// listServices implements GET /services[?search=S]. The data model
// (spec.md §3) carries no tag field, so `tag` is accepted but ignored
// rather than silently 400ing an agent that copies the full query
// string from spec.md §6; `search` does a case-insensitive substring
// match against name and description.
func (s *Server) listServices(c *gin.Context) {
	services, err := s.Services.List(c.Request.Context(), true)
	if err != nil {
		response.Error(c, apperror.Internal(err))
		return
	}

	search := strings.ToLower(c.Query("search"))
	out := make([]catalogEntry, 0, len(services))
	for _, svc := range services {
		if search != "" && !strings.Contains(strings.ToLower(svc.Name), search) &&
			!strings.Contains(strings.ToLower(svc.Description), search) {
			continue
		}
		out = append(out, s.toCatalogEntry(svc))
	}
	response.OK(c, gin.H{"services": out})
}

func (s *Server) getService(c *gin.Context) {
	svc, err := s.lookupActiveService(c, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s.toCatalogEntry(svc))
}

func (s *Server) listAgentServices(c *gin.Context) {
	services, err := s.Services.List(c.Request.Context(), true)
	if err != nil {
		response.Error(c, apperror.Internal(err))
		return
	}
	out := make([]agentCatalogEntry, 0, len(services))
	for _, svc := range services {
		out = append(out, s.toAgentEntry(svc))
	}
	response.OK(c, gin.H{"services": out})
}

func (s *Server) getAgentService(c *gin.Context) {
	svc, err := s.lookupActiveService(c, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s.toAgentEntry(svc))
}

// lookupActiveService fetches and validates a service the way every
// protected route needs to: found, and active (spec.md §4.1, §7
// SERVICE_INACTIVE covers both the missing-row and inactive cases).
func (s *Server) lookupActiveService(c *gin.Context, id string) (*domain.Service, error) {
	svc, err := s.Services.Get(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperror.ServiceInactive(false)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !svc.Active {
		return nil, apperror.ServiceInactive(true)
	}
	return svc, nil
}
