package x402types

import "testing"

func TestPaymentRequirementEqualIgnoresDescriptionAndExtra(t *testing.T) {
	base := PaymentRequirement{
		Scheme: "exact", Network: "eip155:8453", MaxAmountRequired: "1000",
		Resource: "/gateway/svc-1", PayTo: "0xescrow", Asset: "0xtoken",
		MaxTimeoutSeconds: 60, Description: "original", Extra: RequirementExtra{Symbol: "USDC"},
	}
	altered := base
	altered.Description = "different description"
	altered.Extra = RequirementExtra{Symbol: "DIFFERENT"}

	if !base.Equal(altered) {
		t.Fatalf("expected requirements with only description/extra differing to be Equal")
	}
}

func TestPaymentRequirementEqualDetectsPayToMismatch(t *testing.T) {
	base := PaymentRequirement{PayTo: "0xescrow", Scheme: "exact", Network: "eip155:8453"}
	other := base
	other.PayTo = "0xattacker"

	if base.Equal(other) {
		t.Fatalf("expected PayTo mismatch to break equality")
	}
}

func TestParseUintFieldRejectsNonNumeric(t *testing.T) {
	if _, err := ParseUintField("value", "not-a-number"); err == nil {
		t.Fatalf("expected an error for a non-numeric value field")
	}
}

func TestParseUintFieldAcceptsDecimal(t *testing.T) {
	got, err := ParseUintField("validAfter", "1700000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1700000000 {
		t.Fatalf("got %d, want 1700000000", got)
	}
}
