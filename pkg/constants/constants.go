// Package constants defines system-wide constants for the CA key engine.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Key Type Constants
// ================================================================================

// KeyType represents the algorithm family of a private key
type KeyType string

const (
	// KeyTypeRSA represents an RSA key, parameterised by key size
	KeyTypeRSA KeyType = "RSA"

	// KeyTypeDSA represents a DSA key, parameterised by key size
	KeyTypeDSA KeyType = "DSA"

	// KeyTypeEC represents an elliptic curve key, parameterised by named curve
	KeyTypeEC KeyType = "EC"
)

// String returns the key type name
func (k KeyType) String() string {
	return string(k)
}

// ================================================================================
// Elliptic Curve Constants
// ================================================================================

// EllipticCurve is the lower-case SEC 2 name of a named curve
type EllipticCurve string

const (
	CurveSECP224R1 EllipticCurve = "secp224r1"
	CurveSECP256R1 EllipticCurve = "secp256r1"
	CurveSECP384R1 EllipticCurve = "secp384r1"
	CurveSECP521R1 EllipticCurve = "secp521r1"
)

// String returns the curve name
func (c EllipticCurve) String() string {
	return string(c)
}

// ================================================================================
// Hash Algorithm Constants
// ================================================================================

// HashAlgorithm names a signature hash algorithm
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA384 HashAlgorithm = "sha384"
	HashSHA512 HashAlgorithm = "sha512"
)

// ================================================================================
// Policy Defaults
// ================================================================================

const (
	// DefaultMinKeySize is the smallest RSA/DSA key size accepted
	DefaultMinKeySize = 2048

	// DefaultKeySize is used when a caller does not request a key size
	DefaultKeySize = 4096

	// DefaultEllipticCurve is used when a caller does not request a curve
	DefaultEllipticCurve = CurveSECP256R1

	// DefaultSignatureHashAlgorithm is used for RSA and EC keys
	DefaultSignatureHashAlgorithm = HashSHA512

	// DefaultDSASignatureHashAlgorithm is used for DSA keys
	DefaultDSASignatureHashAlgorithm = HashSHA256

	// DefaultOCSPResponderValidity is the lifetime of a regenerated OCSP responder certificate
	DefaultOCSPResponderValidity = 48 * time.Hour

	// SerialNumberBits is the size of randomly generated certificate serials
	SerialNumberBits = 159
)

// ================================================================================
// Storage and Backend Constants
// ================================================================================

// StorageType selects the medium behind a storage alias
type StorageType string

const (
	StorageTypeFilesystem StorageType = "filesystem"
	StorageTypeVault      StorageType = "vault"
	StorageTypeRedis      StorageType = "redis"
	StorageTypeMemory     StorageType = "memory"
)

// BackendKind selects the implementation behind a key backend alias
type BackendKind string

const (
	// BackendKindStorages keeps encrypted PKCS#8 blobs in a named storage alias
	BackendKindStorages BackendKind = "storages"

	// BackendKindPKCS11 keeps non-exportable keys on a PKCS#11 token
	BackendKindPKCS11 BackendKind = "pkcs11"
)

const (
	// DefaultKeyBackendAlias is the backend used when a CA names none
	DefaultKeyBackendAlias = "default"

	// DefaultStorageAlias is the storage used by the default backend
	DefaultStorageAlias = "default"

	// KeyFileExtension is appended to the normalised CA serial
	KeyFileExtension = ".key"

	// OCSPKeyDirectory holds regenerated OCSP responder keys and certificates
	OCSPKeyDirectory = "ocsp"
)

// Key backend option names persisted on the CA
const (
	KeyBackendOptionPath     = "path"
	KeyBackendOptionKeyLabel = "key_label"
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode represents a machine readable error code
type ErrorCode string

const (
	ErrCodeInvalidKeyParameters ErrorCode = "invalid_key_parameters"
	ErrCodeUnsupportedKeyType   ErrorCode = "unsupported_key_type"
	ErrCodeUnknownStorageAlias  ErrorCode = "unknown_storage_alias"
	ErrCodeStorageUnavailable   ErrorCode = "storage_unavailable"
	ErrCodeKeyFileNotFound      ErrorCode = "key_file_not_found"
	ErrCodeMissingKeyState      ErrorCode = "missing_key_state"
	ErrCodeKeyDecryptionFailed  ErrorCode = "key_decryption_failed"
	ErrCodeSigningFailed        ErrorCode = "signing_failed"
	ErrCodeUnknownKeyBackend    ErrorCode = "unknown_key_backend"
	ErrCodeInvalidConfiguration ErrorCode = "invalid_configuration"
	ErrCodeInternal             ErrorCode = "internal_error"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyCASerial is the key for the CA serial being operated on
	ContextKeyCASerial ContextKey = "ca_serial"
)

//Personal.AI order the ending
