// Package apperr defines the error kinds surfaced by the query core and how
// they map onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError for field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConfigUnavailableError means the feature-configuration provider could not
// produce a provider choice and no fallback was configured.
type ConfigUnavailableError struct {
	Cause error
}

func (e *ConfigUnavailableError) Error() string {
	return fmt.Sprintf("provider configuration unavailable: %v", e.Cause)
}

func (e *ConfigUnavailableError) Unwrap() error { return e.Cause }

// UnknownProviderError means configuration named a provider with no adapter.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %q", e.Provider)
}

// ProviderExecutionError wraps an adapter failure, malformed response or timeout.
type ProviderExecutionError struct {
	Provider string
	Cause    error
}

func (e *ProviderExecutionError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Cause)
}

func (e *ProviderExecutionError) Unwrap() error { return e.Cause }

// StorageError wraps a persistence layer failure.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Storage wraps err as a StorageError for op. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Cause: err}
}

// Kind is a short machine-readable name for an error, used in JSON bodies.
func Kind(err error) string {
	var (
		ve *ValidationError
		ce *ConfigUnavailableError
		ue *UnknownProviderError
		pe *ProviderExecutionError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &ce):
		return "config_unavailable"
	case errors.As(err, &ue):
		return "unknown_provider"
	case errors.As(err, &pe):
		return "provider_error"
	case errors.As(err, &se):
		return "storage_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps an error to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "config_unavailable":
		return http.StatusServiceUnavailable
	case "provider_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show untrusted callers. Validation
// messages are returned verbatim; everything else gets a generic description
// and the cause stays in the logs.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	switch Kind(err) {
	case "config_unavailable":
		return "provider configuration unavailable"
	case "unknown_provider":
		return "configured provider is not supported"
	case "provider_error":
		return "query execution failed"
	case "storage_error":
		return "storage unavailable"
	default:
		return "internal error"
	}
}
