// Package errors defines custom error types and error handling utilities for the CA key engine.
// Every failure surfaced by a key backend is a CAError carrying one of the codes in pkg/constants.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/turtacn/cakeys/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// CAError represents a structured error with additional metadata
type CAError interface {
	error

	// Code returns the machine readable error code
	Code() constants.ErrorCode

	// Description returns a human-readable description of the error kind
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) CAError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) CAError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of CAError
type baseError struct {
	code        constants.ErrorCode
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Code returns the error code
func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

// Description returns the error description
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a sentinel or CAError of the same code
func (e *baseError) Is(target error) bool {
	switch t := target.(type) {
	case sentinel:
		return constants.ErrorCode(t) == e.code
	case *baseError:
		return t.code == e.code
	}
	return false
}

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) CAError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) CAError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// sentinel is a comparison-only error value for errors.Is
type sentinel constants.ErrorCode

func (s sentinel) Error() string {
	return string(s)
}

// Sentinels match any CAError with the same code through errors.Is.
var (
	ErrInvalidKeyParametersKind error = sentinel(constants.ErrCodeInvalidKeyParameters)
	ErrUnsupportedKeyTypeKind   error = sentinel(constants.ErrCodeUnsupportedKeyType)
	ErrUnknownStorageAliasKind  error = sentinel(constants.ErrCodeUnknownStorageAlias)
	ErrStorageUnavailableKind   error = sentinel(constants.ErrCodeStorageUnavailable)
	ErrKeyFileNotFoundKind      error = sentinel(constants.ErrCodeKeyFileNotFound)
	ErrMissingKeyStateKind      error = sentinel(constants.ErrCodeMissingKeyState)
	ErrKeyDecryptionFailedKind  error = sentinel(constants.ErrCodeKeyDecryptionFailed)
	ErrSigningFailedKind        error = sentinel(constants.ErrCodeSigningFailed)
	ErrUnknownKeyBackendKind    error = sentinel(constants.ErrCodeUnknownKeyBackend)
	ErrInvalidConfigurationKind error = sentinel(constants.ErrCodeInvalidConfiguration)
)

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new CAError with the specified parameters
func NewError(code constants.ErrorCode, description string, message string) CAError {
	return &baseError{
		code:        code,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Key Policy Errors
// ================================================================================

// ErrInvalidKeyParameters creates an invalid_key_parameters error
func ErrInvalidKeyParameters(message string) CAError {
	return NewError(
		constants.ErrCodeInvalidKeyParameters,
		"The key size, curve or password is not valid for the requested key type.",
		message,
	)
}

// ErrUnsupportedKeyType creates an unsupported_key_type error
func ErrUnsupportedKeyType(keyType string) CAError {
	return NewError(
		constants.ErrCodeUnsupportedKeyType,
		"The key algorithm is not supported by this operation.",
		fmt.Sprintf("%s: unsupported key type", keyType),
	).WithMetadata("key_type", keyType)
}

// ================================================================================
// Storage Errors
// ================================================================================

// ErrUnknownStorageAlias creates an unknown_storage_alias error
func ErrUnknownStorageAlias(alias string) CAError {
	return NewError(
		constants.ErrCodeUnknownStorageAlias,
		"The storage alias is not present in the storage configuration.",
		fmt.Sprintf("%s: storage alias is not configured", alias),
	).WithMetadata("storage_alias", alias)
}

// ErrStorageUnavailable creates a storage_unavailable error
func ErrStorageUnavailable(alias string, cause error) CAError {
	return NewError(
		constants.ErrCodeStorageUnavailable,
		"The storage medium could not be reached.",
		fmt.Sprintf("storage %q is unavailable", alias),
	).WithCause(cause).WithMetadata("storage_alias", alias)
}

// ErrKeyFileNotFound creates a key_file_not_found error carrying the resolved path
func ErrKeyFileNotFound(path string) CAError {
	return NewError(
		constants.ErrCodeKeyFileNotFound,
		"The private key file referenced by the certificate authority does not exist.",
		fmt.Sprintf("%s: private key file not found", path),
	).WithMetadata("path", path)
}

// ErrMissingKeyState creates a missing_key_state error
func ErrMissingKeyState(caSerial string) CAError {
	return NewError(
		constants.ErrCodeMissingKeyState,
		"The certificate authority has no recorded private key location.",
		"Path to private key is not configured",
	).WithMetadata("ca_serial", caSerial)
}

// ================================================================================
// Cryptographic Errors
// ================================================================================

// ErrKeyDecryptionFailed creates a key_decryption_failed error
func ErrKeyDecryptionFailed(caSerial string) CAError {
	return NewError(
		constants.ErrCodeKeyDecryptionFailed,
		"The private key could not be decoded; the password is wrong or the data is corrupt.",
		"Could not decrypt private key - bad password?",
	).WithMetadata("ca_serial", caSerial)
}

// ErrSigningFailed creates a signing_failed error
func ErrSigningFailed(reason string) CAError {
	return NewError(
		constants.ErrCodeSigningFailed,
		"The structure could not be signed with the certificate authority key.",
		reason,
	)
}

// ================================================================================
// Configuration Errors
// ================================================================================

// ErrUnknownKeyBackend creates an unknown_key_backend error
func ErrUnknownKeyBackend(alias string) CAError {
	return NewError(
		constants.ErrCodeUnknownKeyBackend,
		"The key backend alias is not present in the key backend configuration.",
		fmt.Sprintf("%s: key backend is not configured", alias),
	).WithMetadata("key_backend", alias)
}

// ErrInvalidConfiguration creates an invalid_configuration error
func ErrInvalidConfiguration(message string) CAError {
	return NewError(
		constants.ErrCodeInvalidConfiguration,
		"The configuration is invalid.",
		message,
	)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// IsCAError checks if an error is a CAError
func IsCAError(err error) bool {
	_, ok := AsCAError(err)
	return ok
}

// AsCAError finds the first CAError in the error chain
func AsCAError(err error) (CAError, bool) {
	var caErr CAError
	if stderrors.As(err, &caErr) {
		return caErr, true
	}
	return nil, false
}

// IsCode reports whether any CAError in the chain carries code
func IsCode(err error, code constants.ErrorCode) bool {
	return stderrors.Is(err, sentinel(code))
}

// CodeOf returns the code of the first CAError in the chain, or ErrCodeInternal
func CodeOf(err error) constants.ErrorCode {
	if caErr, ok := AsCAError(err); ok {
		return caErr.Code()
	}
	return constants.ErrCodeInternal
}

// WrapError wraps a generic error into a CAError. Errors that already are a
// CAError are returned unchanged so their code survives.
func WrapError(err error, code constants.ErrorCode, message string) CAError {
	if caErr, ok := err.(CAError); ok {
		return caErr
	}
	return NewError(code, message, message).WithCause(err)
}

// IsTransientError checks if an error comes from an unreachable storage medium
func IsTransientError(err error) bool {
	return IsCode(err, constants.ErrCodeStorageUnavailable)
}

// IsNotFoundError checks if an error is a key_file_not_found error.
func IsNotFoundError(err error) bool {
	return IsCode(err, constants.ErrCodeKeyFileNotFound)
}

//Personal.AI order the ending
