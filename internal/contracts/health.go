package contracts

import "context"

// HealthCheck verifies the configured chain RPC endpoint still
// answers, grounded on VidIsWandering-secure-payment-gateway's
// ports.HealthChecker / per-adapter Ping pattern
// (internal/adapter/storage/{postgres,redis}/health.go).
type HealthCheck struct {
	backend Backend
}

func NewHealthCheck(backend Backend) *HealthCheck {
	return &HealthCheck{backend: backend}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.backend.ChainID(ctx)
	return err
}

func (h *HealthCheck) Name() string {
	return "chain_rpc"
}
