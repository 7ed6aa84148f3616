package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrGateway          = errors.New("gateway_error")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrReconciliation   = errors.New("reconciliation_error")
)

// GatewayError wraps any provider or transport failure. StatusCode is zero
// when the request never got a response.
type GatewayError struct {
	Provider   string
	Operation  string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// ReconciliationError means the notification could not be applied and the
// provider should retry it.
type ReconciliationError struct {
	PaymentID string
	Step      string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile payment %s: %s: %v", e.PaymentID, e.Step, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }
