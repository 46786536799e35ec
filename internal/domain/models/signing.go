package models

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/turtacn/cakeys/pkg/constants"
	"golang.org/x/crypto/ocsp"
)

// SignCertificateRequest is the caller supplied content of a certificate.
// Extensions are encoded in slice order, each with its own criticality flag.
// SignCertificateRequest 是调用方提供的证书内容。
type SignCertificateRequest struct {
	// PublicKey is the subject public key.
	PublicKey crypto.PublicKey
	// Serial is the certificate serial; nil selects a random serial.
	Serial *big.Int
	// Algorithm overrides the CA default signature hash.
	Algorithm constants.HashAlgorithm
	// Issuer is the issuer name, normally the CA subject.
	Issuer pkix.Name
	// RawIssuer, when set, is used verbatim instead of Issuer.
	RawIssuer []byte
	Subject   pkix.Name
	// Expires is the end of the validity window.
	Expires    time.Time
	Extensions []pkix.Extension
}

// RevokedCertificate is one entry of a CRL.
type RevokedCertificate struct {
	Serial     *big.Int
	RevokedAt  time.Time
	ReasonCode int
	Extensions []pkix.Extension
}

// CRLBuilder accumulates the state of a certificate revocation list before signing.
// CRLBuilder 在签名前累积证书吊销列表的状态。
type CRLBuilder struct {
	Issuer     pkix.Name
	RawIssuer  []byte
	ThisUpdate time.Time
	NextUpdate time.Time
	Number     *big.Int
	// AuthorityKeyID is the CA subject key identifier; derived from the CA key when empty.
	AuthorityKeyID []byte
	Revoked        []RevokedCertificate
	Extensions     []pkix.Extension
}

// AddRevokedCertificate appends an entry to the list and returns the builder.
func (b *CRLBuilder) AddRevokedCertificate(serial *big.Int, revokedAt time.Time, reasonCode int) *CRLBuilder {
	b.Revoked = append(b.Revoked, RevokedCertificate{
		Serial:     serial,
		RevokedAt:  revokedAt,
		ReasonCode: reasonCode,
	})
	return b
}

// OCSPResponseRequest describes one OCSP response to sign with a CA key.
type OCSPResponseRequest struct {
	// Issuer is the certificate of the CA that issued the queried certificate.
	Issuer *x509.Certificate
	// Responder is the delegated responder certificate; nil signs as the issuer.
	Responder *x509.Certificate
	// Template carries status, serial and timestamps of the response.
	Template  ocsp.Response
	Algorithm constants.HashAlgorithm
}
