package crypto

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	stderrors "errors"
	"fmt"

	"github.com/youmark/pkcs8"
)

// PEM block types understood by ParsePrivateKey.
const (
	pemTypePrivateKey          = "PRIVATE KEY"
	pemTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	pemTypeECPrivateKey        = "EC PRIVATE KEY"
	pemTypeCertificate         = "CERTIFICATE"
)

// ErrUndecodableKey is returned when neither DER nor PEM decoding succeeds.
// Wrong passwords and corrupt data are not distinguished.
var ErrUndecodableKey = stderrors.New("private key could not be decoded")

// MarshalPrivateKey serialises key as PKCS#8 DER. A non-empty password encrypts
// it with PBES2 (PBKDF2-HMAC-SHA256, AES-256-CBC).
func MarshalPrivateKey(key crypto.PrivateKey, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return x509.MarshalPKCS8PrivateKey(key)
	}
	return pkcs8.MarshalPrivateKey(key, password, nil)
}

// EncodePrivateKeyPEM serialises key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key crypto.PrivateKey, password []byte) ([]byte, error) {
	der, err := MarshalPrivateKey(key, password)
	if err != nil {
		return nil, err
	}
	blockType := pemTypePrivateKey
	if len(password) > 0 {
		blockType = pemTypeEncryptedPrivateKey
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// EncodeCertificatePEM returns the PEM form of a certificate.
func EncodeCertificatePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: cert.Raw})
}

// ParsePrivateKey decodes a stored private key. It makes exactly two attempts:
// PKCS#8 DER first, then PEM, both with the same password. If both fail the
// result wraps ErrUndecodableKey.
func ParsePrivateKey(data, password []byte) (crypto.PrivateKey, error) {
	key, derErr := parseDER(data, password)
	if derErr == nil {
		return key, nil
	}
	key, pemErr := parsePEM(data, password)
	if pemErr == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUndecodableKey, stderrors.Join(
		fmt.Errorf("der: %w", derErr), fmt.Errorf("pem: %w", pemErr)))
}

func parseDER(der, password []byte) (crypto.PrivateKey, error) {
	if len(password) == 0 {
		return pkcs8.ParsePKCS8PrivateKey(der)
	}
	return pkcs8.ParsePKCS8PrivateKey(der, password)
}

func parsePEM(data, password []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, stderrors.New("no PEM block found")
	}
	if _, ok := block.Headers["DEK-Info"]; ok {
		return nil, stderrors.New("legacy PEM encryption is not supported")
	}

	if block.Type == pemTypeEncryptedPrivateKey {
		if len(password) == 0 {
			return nil, stderrors.New("private key is encrypted but no password was given")
		}
		return pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	}
	if len(password) > 0 {
		return nil, stderrors.New("password was given but private key is not encrypted")
	}

	switch block.Type {
	case pemTypePrivateKey:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	case pemTypeRSAPrivateKey:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemTypeECPrivateKey:
		return x509.ParseECPrivateKey(block.Bytes)
	}
	return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
}
