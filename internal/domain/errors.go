package domain

import "fmt"

// Error types for consistent error handling across the ledger core.
// Each type maps to a stable machine-readable code at the HTTP boundary.

// ErrNotFound indicates a referenced entity is absent.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrForbidden indicates an ownership violation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrValidation indicates malformed or contradictory business input.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidState indicates an operation against a transaction that is
// not in the required status (terminal statuses never transition again).
type ErrInvalidState struct {
	Resource string
	ID       string
	Status   string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("%s %s is %s", e.Resource, e.ID, e.Status)
}

// ErrInsufficientFunds indicates the stored ledger balance cannot cover
// the requested amount. Amounts are integer minor units.
type ErrInsufficientFunds struct {
	AvailableMinor int64
	RequiredMinor  int64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%d required=%d", e.AvailableMinor, e.RequiredMinor)
}

// ErrCardFrozen indicates the card rejects new transaction creation.
type ErrCardFrozen struct {
	CardID string
}

func (e *ErrCardFrozen) Error() string {
	return fmt.Sprintf("card is frozen: %s", e.CardID)
}

// ErrPaymentFailed indicates the provider processed the operation but
// reported a declined or failed outcome.
type ErrPaymentFailed struct {
	Provider      Provider
	CorrelationID string
	Status        string
}

func (e *ErrPaymentFailed) Error() string {
	return fmt.Sprintf("payment failed [%s]: %s reported %s", e.Provider, e.CorrelationID, e.Status)
}

// ErrUpstream indicates a transport failure, non-2xx response, or
// undecodable body from a provider adapter.
type ErrUpstream struct {
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *ErrUpstream) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error [%s]: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error [%s]: %s", e.Provider, e.Message)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the provider's circuit breaker is open.
type ErrCircuitOpen struct {
	Provider Provider
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for provider: %s", e.Provider)
}

// ErrUnauthorized indicates an invalid or missing credential.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
