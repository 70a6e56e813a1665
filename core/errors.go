package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the API rejects an email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailAlreadyRegistered is returned when registration conflicts with an existing account.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrSessionExpired is returned when the current session failed validation or was cleared mid-flight.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoSession is returned by persisters when nothing is stored.
	ErrNoSession = errors.New("no session stored")
	// ErrSubmissionInFlight is returned while another login, register or logout is running.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrAlreadyInactive is returned when deactivating a record that is already inactive.
	ErrAlreadyInactive = errors.New("record already inactive")
	// ErrFormClosed is returned when submitting without an open form.
	ErrFormClosed = errors.New("form is not open")
	// ErrReloadFailed wraps the load error when a save or deactivate succeeded
	// but the collection could not be refreshed afterwards.
	ErrReloadFailed = errors.New("change applied, but the list could not be reloaded")
	// ErrClosed is returned by an orchestrator after Close.
	ErrClosed = errors.New("screen closed")
)

// ValidationError is a local, pre-network failure tied to one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GatewayError is any remote failure other than the dedicated auth sentinels.
type GatewayError struct {
	Status  int
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text shown to the operator for err, or fallback when
// err carries nothing readable.
func UserMessage(err error, fallback string) string {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Credenciales inválidas"
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return "El email ya está registrado"
	}
	return fallback
}
