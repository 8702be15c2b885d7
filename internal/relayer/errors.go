package relayer

import (
	"strings"

	"github.com/kagenti-labs/x402-gateway/pkg/apperror"
)

// classifyRevert maps a revert reason string surfaced by the node back
// onto the §7 error taxonomy, so a contract-side rejection produces
// the same client-facing code an off-chain check would have (spec.md
// §7 propagation policy: settlement errors keep their taxonomy kind
// even when discovered on-chain instead of during verification).
func classifyRevert(reason string) *apperror.AppError {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "nonce already used"), strings.Contains(lower, "authorization is used"):
		return apperror.NonceUsed()
	case strings.Contains(lower, "service not active"):
		return apperror.ServiceInactive(true)
	case strings.Contains(lower, "insufficient payment"), strings.Contains(lower, "insufficient value"):
		return apperror.InsufficientValue()
	case strings.Contains(lower, "authorization not yet valid"), strings.Contains(lower, "authorization expired"):
		return apperror.OutOfWindow()
	case strings.Contains(lower, "invalid signature"):
		return apperror.BadSignature()
	default:
		return apperror.SettlementFailed(errRevert(reason))
	}
}

type errRevertT struct{ reason string }

func (e errRevertT) Error() string { return "reverted: " + e.reason }

func errRevert(reason string) error { return errRevertT{reason} }
