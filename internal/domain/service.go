// Package domain holds the gateway's persistent record types: the
// service catalog, provider ledger mirror, and access-log entries
// (spec.md §3).
package domain

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

// ErrNotFound is the storage-agnostic not-found sentinel every
// repository returns, so callers above the storage layer never need
// to import a specific backend's error type.
var ErrNotFound = errors.New("not found")

// Service is the immutable-identity catalog record described in
// spec.md §3. Kind-specific fields (Content / Endpoint) are mutually
// exclusive; ServiceIDHash is the on-chain twin of ID.
type Service struct {
	ID              string
	Name            string
	Description     string
	PriceBaseUnits  *big.Int
	TokenAddress    string
	Kind            x402types.ServiceKind
	Content         []byte
	Endpoint        string
	ProviderAddress string
	Active          bool
	CreatedAt       time.Time
}

// ServiceIDHash computes keccak256(utf8(service_id)), the canonical
// on-chain key (GLOSSARY, spec.md §3).
func ServiceIDHash(serviceID string) common.Hash {
	return crypto.Keccak256Hash([]byte(serviceID))
}

// Validate enforces the service record invariants from spec.md §3 and
// §8: positive price, exclusive kind-specific fields, HOSTED
// self-reference.
func (s *Service) Validate(gatewayBaseURL string) error {
	if s.PriceBaseUnits == nil || s.PriceBaseUnits.Sign() <= 0 {
		return errInvalidService("price_base_units must be > 0")
	}
	switch s.Kind {
	case x402types.KindHosted:
		if len(s.Content) == 0 {
			return errInvalidService("HOSTED service requires content")
		}
		if s.Endpoint != "" && s.Endpoint != gatewayBaseURL+"/gateway/"+s.ID {
			return errInvalidService("HOSTED endpoint must self-reference /gateway/<service_id>")
		}
	case x402types.KindProxy:
		if s.Endpoint == "" {
			return errInvalidService("PROXY service requires an upstream endpoint")
		}
		if len(s.Content) != 0 {
			return errInvalidService("PROXY service must not carry content")
		}
	case x402types.KindNative:
		if len(s.Content) != 0 || s.Endpoint != "" {
			return errInvalidService("NATIVE service must not carry content or endpoint")
		}
	default:
		return errInvalidService("unknown service kind")
	}
	return nil
}

type invalidServiceError struct{ msg string }

func (e *invalidServiceError) Error() string { return e.msg }

func errInvalidService(msg string) error { return &invalidServiceError{msg} }

// CanonicalEndpoint returns the self-referencing gateway path used for
// HOSTED services.
func CanonicalEndpoint(baseURL, serviceID string) string {
	return baseURL + "/gateway/" + serviceID
}
