package service

import (
	"context"
	"crypto"
	"crypto/x509"
	"io"

	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/pkg/constants"
)

// KeyBackend defines the capability contract every private key store must satisfy.
// A backend owns where key material lives; callers only hold the CA key-state.
// KeyBackend 定义了每个私钥存储必须满足的能力契约。
type KeyBackend interface {
	// Alias returns the configured name of this backend.
	// Alias 返回此后端的配置名称。
	Alias() string

	// Kind returns the implementation kind.
	Kind() constants.BackendKind

	// Equal reports structural equality: same implementation over the same key store.
	// Equal 报告结构相等性。
	Equal(other KeyBackend) bool

	// CreatePrivateKey generates a key pair, persists the private key and records its
	// location on ca. The key-state is only updated after the write succeeded.
	// CreatePrivateKey 生成密钥对，持久化私钥并在 CA 上记录其位置。
	CreatePrivateKey(ctx context.Context, ca *models.CertificateAuthority, keyType constants.KeyType, opts *models.CreatePrivateKeyOptions) (crypto.PublicKey, *models.UsePrivateKeyOptions, error)

	// StorePrivateKey persists a caller supplied key, overwriting any previous key of ca.
	// StorePrivateKey 持久化调用方提供的密钥，覆盖 CA 之前的密钥。
	StorePrivateKey(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, opts *models.StorePrivateKeyOptions) error

	// GetKey loads the private key of ca. The returned signer must not outlive the calling operation.
	// GetKey 加载 CA 的私钥。
	GetKey(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (crypto.Signer, error)

	// IsUsable is a probe that never fails. With nil opts it only checks that the key exists.
	// IsUsable 是一个永不失败的探测。
	IsUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) bool

	// CheckUsable returns the reason the key of ca cannot be used, or nil.
	// CheckUsable 返回 CA 密钥无法使用的原因。
	CheckUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) error

	// SignCertificate builds and signs a certificate with the key of ca.
	// SignCertificate 使用 CA 密钥构建并签署证书。
	SignCertificate(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.SignCertificateRequest) (*x509.Certificate, error)

	// SignCRL signs the accumulated revocation list with the key of ca.
	// SignCRL 使用 CA 密钥签署吊销列表。
	SignCRL(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, builder *models.CRLBuilder, algorithm constants.HashAlgorithm) (*x509.RevocationList, error)

	// SignOCSPResponse signs a DER encoded OCSP response with the key of ca.
	SignOCSPResponse(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.OCSPResponseRequest) ([]byte, error)

	// GetOCSPKeySize returns the size of an RSA or DSA CA key.
	GetOCSPKeySize(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (int, error)

	// GetOCSPKeyEllipticCurve returns the curve of an EC CA key.
	GetOCSPKeyEllipticCurve(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (constants.EllipticCurve, error)
}

// Storage is a named blob store addressed by slash separated relative paths.
// Open and Exists report a missing blob through an error wrapping fs.ErrNotExist;
// an unreachable medium is reported as a storage_unavailable error.
// Storage 是按相对路径寻址的命名二进制存储。
type Storage interface {
	// Alias returns the configured name of this storage.
	Alias() string

	// Save writes data under name, replacing any existing blob, and returns the stored name.
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open returns a reader for the blob; the caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether a blob is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Location returns a human readable location of name for diagnostics.
	Location(name string) string
}

// StorageResolver looks up storages by alias.
type StorageResolver interface {
	Get(alias string) (Storage, error)
}

// KeyBackendResolver looks up key backends by alias.
type KeyBackendResolver interface {
	Get(alias string) (KeyBackend, error)
	ForCA(ca *models.CertificateAuthority) (KeyBackend, error)
}
