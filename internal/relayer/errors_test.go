package relayer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyRevert(t *testing.T) {
	cases := []struct {
		reason string
		code   string
	}{
		{"execution reverted: Nonce already used", "NONCE_USED"},
		{"execution reverted: authorization is used", "NONCE_USED"},
		{"execution reverted: Service not active", "SERVICE_INACTIVE"},
		{"execution reverted: Insufficient payment", "INSUFFICIENT_VALUE"},
		{"execution reverted: authorization not yet valid", "OUT_OF_WINDOW"},
		{"execution reverted: invalid signature", "BAD_SIGNATURE"},
		{"execution reverted: something unexpected", "SETTLEMENT_FAILED"},
	}
	for _, tc := range cases {
		got := classifyRevert(tc.reason)
		require.Equal(t, tc.code, got.Code, tc.reason)
	}
}
