// Package errors defines the error types used throughout the Threads API client.
package errors

import (
	"fmt"
	"time"
)

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// ValidationError indicates malformed local input, caught before any
// request is issued to the Threads API.
type ValidationError struct {
	// Field contains the name of the offending parameter, if known
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// AuthorizationError indicates a failure in the OAuth authorization flow:
// a CSRF state mismatch, a provider-reported error, or an unexpected
// token-exchange response.
type AuthorizationError struct {
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("authorization error: %s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("authorization error: %v", e.Err)
	}
	return fmt.Sprintf("authorization error: %s", e.Message)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// TokenExpiredError indicates an operation was attempted with credentials
// whose access token has already expired. The user must reauthenticate.
type TokenExpiredError struct {
	// Expiration is the recorded expiration of the rejected token
	Expiration time.Time
}

func (e *TokenExpiredError) Error() string {
	if e.Expiration.IsZero() {
		return "access token has expired"
	}
	return fmt.Sprintf("access token expired at %s", e.Expiration.Format(time.RFC3339))
}

// APIError represents a non-2xx response from the Threads API. The graph
// error envelope is decoded into the typed fields when present; Body always
// carries the raw response for anything the envelope misses.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Code is the graph error code (if available)
	Code int
	// Subcode is the graph error subcode (if available)
	Subcode int
	// Type is the graph error type, e.g. "OAuthException"
	Type string
	// TraceID is the fbtrace_id returned for support correlation
	TraceID string
	// Message is the error message from the API
	Message string
	// Body contains the raw response body
	Body string
}

func (e *APIError) Error() string {
	if e.Type != "" || e.Code != 0 {
		return fmt.Sprintf("threads API error (status %d, type %s, code %d): %s", e.StatusCode, e.Type, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("threads API request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("threads API request failed with status %d: %q", e.StatusCode, e.Body)
}

// PublishingError indicates that the container publishing workflow cannot
// proceed: a publish was attempted on a container that is not FINISHED, or
// a container reached ERROR or EXPIRED during a composed publish.
type PublishingError struct {
	// ContainerID identifies the container that failed
	ContainerID string
	// Status is the container's last observed publishing status
	Status string
	// Code is the publishing error code reported by the API, if any
	Code string
}

func (e *PublishingError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("container %s cannot be published: status %s (%s)", e.ContainerID, e.Status, e.Code)
	}
	return fmt.Sprintf("container %s cannot be published: status %s", e.ContainerID, e.Status)
}

// ClientError indicates a problem within the HTTP client itself, such as a
// request that could not be built or a network failure.
type ClientError struct {
	// Operation describes what the client was trying to do
	Operation string
	// Err contains the underlying error
	Err error
}

func (e *ClientError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("client error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("client error: %v", e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// ParseError indicates a response that could not be interpreted, such as an
// unknown container status value or a malformed JSON payload.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error { return e.Err }
