package models

import (
	"path"
	"strings"

	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

// DefaultKeyDirectory is the storage directory used when no path is requested.
const DefaultKeyDirectory = "ca"

// PasswordTable resolves a default private key password for a CA serial.
// config.CAConfig satisfies it.
type PasswordTable interface {
	Password(serial string) ([]byte, bool)
}

// ================================================================================
// Create Options
// ================================================================================

// CreatePrivateKeyRequest carries the raw caller input for key creation.
type CreatePrivateKeyRequest struct {
	KeyType       constants.KeyType
	Password      []byte
	Path          string
	KeySize       *int
	EllipticCurve *constants.EllipticCurve
}

// CreatePrivateKeyOptions are the validated, immutable options for generating a key.
// Exactly one of KeySize and EllipticCurve is set, matching KeyType.
// CreatePrivateKeyOptions 是生成密钥的已验证、不可变的选项。
type CreatePrivateKeyOptions struct {
	keyType  constants.KeyType
	password []byte
	path     string
	keySize  int
	curve    constants.EllipticCurve
}

// NewCreatePrivateKeyOptions validates req against policy. All parameter errors
// are reported here, before any storage is touched.
func NewCreatePrivateKeyOptions(policy KeyPolicy, req CreatePrivateKeyRequest) (*CreatePrivateKeyOptions, error) {
	size, curve, err := policy.Validate(req.KeyType, req.KeySize, req.EllipticCurve)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	p, err := cleanStoragePath(req.Path)
	if err != nil {
		return nil, err
	}

	return &CreatePrivateKeyOptions{
		keyType:  req.KeyType,
		password: clonePassword(req.Password),
		path:     p,
		keySize:  size,
		curve:    curve,
	}, nil
}

// KeyType returns the key algorithm family.
func (o *CreatePrivateKeyOptions) KeyType() constants.KeyType { return o.keyType }

// Password returns the encryption password, nil when the key is stored unencrypted.
func (o *CreatePrivateKeyOptions) Password() []byte { return clonePassword(o.password) }

// Path returns the storage directory for the key file.
func (o *CreatePrivateKeyOptions) Path() string { return o.path }

// KeySize returns the RSA/DSA key size, zero for EC keys.
func (o *CreatePrivateKeyOptions) KeySize() int { return o.keySize }

// EllipticCurve returns the EC curve, empty for RSA/DSA keys.
func (o *CreatePrivateKeyOptions) EllipticCurve() constants.EllipticCurve { return o.curve }

// ================================================================================
// Store Options
// ================================================================================

// StorePrivateKeyOptions are the immutable options for persisting a caller supplied key.
type StorePrivateKeyOptions struct {
	path     string
	password []byte
}

// NewStorePrivateKeyOptions validates the storage path and password.
func NewStorePrivateKeyOptions(storagePath string, password []byte) (*StorePrivateKeyOptions, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	p, err := cleanStoragePath(storagePath)
	if err != nil {
		return nil, err
	}
	return &StorePrivateKeyOptions{path: p, password: clonePassword(password)}, nil
}

// Path returns the storage directory for the key file.
func (o *StorePrivateKeyOptions) Path() string { return o.path }

// Password returns the encryption password, nil when the key is stored unencrypted.
func (o *StorePrivateKeyOptions) Password() []byte { return clonePassword(o.password) }

// ================================================================================
// Use Options
// ================================================================================

// UsePrivateKeyOptions carry the password needed to load an existing key.
// The password is resolved once, at construction.
// UsePrivateKeyOptions 携带加载现有密钥所需的密码。
type UsePrivateKeyOptions struct {
	password []byte
}

// NewUsePrivateKeyOptions resolves the password for ca: an explicit password
// wins, then the entry for the CA serial in table, otherwise no password.
// ca and table may be nil.
func NewUsePrivateKeyOptions(ca *CertificateAuthority, password []byte, table PasswordTable) *UsePrivateKeyOptions {
	if len(password) > 0 {
		return &UsePrivateKeyOptions{password: clonePassword(password)}
	}
	if ca != nil && table != nil {
		if p, ok := table.Password(ca.Serial); ok && len(p) > 0 {
			return &UsePrivateKeyOptions{password: clonePassword(p)}
		}
	}
	return &UsePrivateKeyOptions{}
}

// Password returns the decryption password, nil for unencrypted keys.
func (o *UsePrivateKeyOptions) Password() []byte {
	if o == nil {
		return nil
	}
	return clonePassword(o.password)
}

// ================================================================================
// Helpers
// ================================================================================

func validatePassword(password []byte) error {
	if password != nil && len(password) == 0 {
		return errors.ErrInvalidKeyParameters("Password must not be empty; omit it to store the key unencrypted.")
	}
	return nil
}

// cleanStoragePath accepts relative slash separated paths that stay inside the storage root.
func cleanStoragePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return DefaultKeyDirectory, nil
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return "", errors.ErrInvalidKeyParameters(p + ": storage path must be relative").WithMetadata("path", p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.ErrInvalidKeyParameters(p + ": storage path escapes the storage root").WithMetadata("path", p)
	}
	return cleaned, nil
}

func clonePassword(p []byte) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
