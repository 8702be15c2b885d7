// Package apperror defines the gateway's error taxonomy and maps each
// kind to the HTTP status it must surface, per the settlement state
// machine's error propagation policy.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that carries both a stable machine-
// readable code and the HTTP status it maps to. The wrapped internal
// error is never serialized to the client.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
	// TxHash is set only for UPSTREAM_FAILED: the settlement already
	// landed on-chain before the upstream call failed, so the caller
	// needs the hash to tell paid-but-undelivered apart from the
	// refused-before-payment case (spec.md §7).
	TxHash string `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with no wrapped cause.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap attaches an AppError code/status to an internal error.
func Wrap(code, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// ---- §7 error taxonomy ----

func MissingPayment() *AppError {
	return New("MISSING_PAYMENT", "payment required", http.StatusPaymentRequired)
}

func InvalidPayload(err error) *AppError {
	return Wrap("INVALID_PAYLOAD", "could not decode payment payload", http.StatusBadRequest, err)
}

func BadRequirementsEcho() *AppError {
	return New("BAD_REQUIREMENTS_ECHO", "echoed payment requirements do not match the issued challenge", http.StatusBadRequest)
}

func BadDestination() *AppError {
	return New("BAD_DESTINATION", "authorization recipient is not the escrow contract", http.StatusBadRequest)
}

func InsufficientValue() *AppError {
	return New("INSUFFICIENT_VALUE", "authorized value is below the service price", http.StatusBadRequest)
}

func OutOfWindow() *AppError {
	return New("OUT_OF_WINDOW", "authorization is outside its validity window", http.StatusPaymentRequired)
}

func NonceUsed() *AppError {
	return New("NONCE_USED", "nonce has already been consumed", http.StatusPaymentRequired)
}

func BadSignature() *AppError {
	return New("BAD_SIGNATURE", "recovered signer does not match the authorization's from address", http.StatusPaymentRequired)
}

func ServiceInactive(found bool) *AppError {
	if !found {
		return New("SERVICE_INACTIVE", "service not found", http.StatusNotFound)
	}
	return New("SERVICE_INACTIVE", "service is not active", http.StatusGone)
}

func SettlementFailed(err error) *AppError {
	return Wrap("SETTLEMENT_FAILED", "on-chain settlement reverted", http.StatusInternalServerError, err)
}

// UpstreamFailed reports a HOSTED/PROXY dispatch failure that happened
// after settlement already succeeded; txHash lets the caller prove the
// payment landed even though no content was delivered (spec.md §7).
func UpstreamFailed(err error, txHash string) *AppError {
	ae := Wrap("UPSTREAM_FAILED", "upstream service call failed after payment was settled", http.StatusOK, err)
	ae.TxHash = txHash
	return ae
}

func TimedOut() *AppError {
	return New("TIMED_OUT", "confirmation wait exceeded; the transaction may still mine", http.StatusAccepted)
}

func NativeNotMediated() *AppError {
	return New("NATIVE_NOT_MEDIATED", "this service is kind NATIVE; use the service's own endpoint directly", http.StatusBadRequest)
}

func SettlementInFlight() *AppError {
	return New("SETTLEMENT_IN_FLIGHT", "an identical payment is already being settled", http.StatusConflict)
}

func Internal(err error) *AppError {
	return Wrap("INTERNAL", "internal error", http.StatusInternalServerError, err)
}

// As extracts an *AppError from err, falling back to a generic
// internal-error wrapper when err is not already one.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
