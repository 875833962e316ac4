package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id has never been created.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPersonaNotFound is returned when no source knows a persona name.
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrInvalidPersona is returned when a persona profile is missing required fields.
	ErrInvalidPersona = errors.New("invalid persona")

	// ErrInvalidDebateRequest is returned when a debate names fewer than two personas.
	ErrInvalidDebateRequest = errors.New("invalid debate request")

	// ErrGateway matches every GatewayError regardless of kind.
	ErrGateway = errors.New("upstream model failure")
)

// GatewayErrorKind classifies a remote model failure.
type GatewayErrorKind string

const (
	GatewayUnreachable       GatewayErrorKind = "unreachable"
	GatewayBadStatus         GatewayErrorKind = "bad_status"
	GatewayMalformedResponse GatewayErrorKind = "malformed_response"
)

// GatewayError represents a failed call to a completion provider.
type GatewayError struct {
	Kind     GatewayErrorKind
	Provider string
	Detail   string
	Err      error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway %s: %s (%v)", e.Provider, e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s gateway %s: %s", e.Provider, e.Kind, e.Detail)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrGateway) true for any gateway failure.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// NewGatewayError builds a classified gateway error.
func NewGatewayError(kind GatewayErrorKind, provider, detail string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Provider: provider, Detail: detail, Err: err}
}

// GatewayKind extracts the kind of a gateway failure, if err is one.
func GatewayKind(err error) (GatewayErrorKind, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return "", false
}

// PersonaError ties a persona lookup failure to the requested name.
type PersonaError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *PersonaError) Error() string {
	return fmt.Sprintf("persona %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersonaError) Unwrap() error {
	return e.Err
}
