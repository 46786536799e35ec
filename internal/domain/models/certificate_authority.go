package models

import (
	"crypto/x509/pkix"

	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/utils"
)

// CertificateAuthority is the part of a CA record the key engine reads and mutates.
// The owning persistence layer stores it; key backends only rewrite KeyBackendAlias
// and KeyBackendOptions after a key was written successfully.
// CertificateAuthority 是密钥引擎读取和修改的 CA 记录部分。
type CertificateAuthority struct {
	// Serial is the hex serial of the CA certificate, with or without colons.
	// Serial 是 CA 证书的十六进制序列号。
	Serial string
	// Subject is the distinguished name of the CA, used as issuer when signing.
	// Subject 是 CA 的可分辨名称，签名时用作颁发者。
	Subject pkix.Name
	// KeyBackendAlias names the configured key backend holding the private key.
	// KeyBackendAlias 指定持有私钥的密钥后端。
	KeyBackendAlias string
	// KeyBackendOptions is the backend specific key-state, e.g. {"path": "ca/4E1E.key"}.
	// KeyBackendOptions 是后端特定的密钥状态。
	KeyBackendOptions map[string]string
}

// NormalizedSerial returns the serial without colons, upper-cased. A nil CA
// has an empty serial.
func (ca *CertificateAuthority) NormalizedSerial() string {
	if ca == nil {
		return ""
	}
	return utils.NormalizeSerial(ca.Serial)
}

// KeyBackendOption returns a non-empty key-state option.
func (ca *CertificateAuthority) KeyBackendOption(name string) (string, bool) {
	if ca == nil || ca.KeyBackendOptions == nil {
		return "", false
	}
	v, ok := ca.KeyBackendOptions[name]
	return v, ok && v != ""
}

// KeyPath returns the recorded storage path of the private key.
func (ca *CertificateAuthority) KeyPath() (string, bool) {
	return ca.KeyBackendOption(constants.KeyBackendOptionPath)
}

// SetKeyState replaces the key-state with a fresh copy of options.
func (ca *CertificateAuthority) SetKeyState(backendAlias string, options map[string]string) {
	state := make(map[string]string, len(options))
	for k, v := range options {
		state[k] = v
	}
	ca.KeyBackendAlias = backendAlias
	ca.KeyBackendOptions = state
}
