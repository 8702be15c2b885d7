package relayer

import "github.com/kagenti-labs/x402-gateway/internal/contracts"

// GasPolicy supplies the hardcoded gas limits spec.md §4.5 requires in
// place of eth_estimateGas: gas estimation on the nested
// processor->token->escrow call chain is unreliable and returns
// UNPREDICTABLE_GAS_LIMIT for calls that in fact succeed, so the
// relayer uses a floor generous enough for that chain instead.
type GasPolicy struct {
	ProcessorGasLimit   uint64
	DirectTokenGasLimit uint64
}

// DefaultGasPolicy applies the floors named in spec.md §4.5.
func DefaultGasPolicy() GasPolicy {
	return GasPolicy{
		ProcessorGasLimit:   contracts.MinProcessorGasLimit,
		DirectTokenGasLimit: contracts.MinDirectTokenGasLimit,
	}
}
