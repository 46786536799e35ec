package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"golang.org/x/crypto/ocsp"
)

// HashDefaults selects the signature hash when the caller names none.
type HashDefaults struct {
	Default constants.HashAlgorithm
	DSA     constants.HashAlgorithm
}

// Resolve returns algorithm, or the default for the key family of pub.
func (h HashDefaults) Resolve(algorithm constants.HashAlgorithm, pub crypto.PublicKey) constants.HashAlgorithm {
	if algorithm != "" {
		return algorithm
	}
	if keyType, err := KeyTypeOf(pub); err == nil && keyType == constants.KeyTypeDSA {
		return h.DSA
	}
	return h.Default
}

var rsaAlgorithms = map[constants.HashAlgorithm]x509.SignatureAlgorithm{
	constants.HashSHA256: x509.SHA256WithRSA,
	constants.HashSHA384: x509.SHA384WithRSA,
	constants.HashSHA512: x509.SHA512WithRSA,
}

var ecdsaAlgorithms = map[constants.HashAlgorithm]x509.SignatureAlgorithm{
	constants.HashSHA256: x509.ECDSAWithSHA256,
	constants.HashSHA384: x509.ECDSAWithSHA384,
	constants.HashSHA512: x509.ECDSAWithSHA512,
}

// SignatureAlgorithm maps a hash name and signing key to an X.509 signature algorithm.
func SignatureAlgorithm(pub crypto.PublicKey, hash constants.HashAlgorithm) (x509.SignatureAlgorithm, error) {
	var table map[constants.HashAlgorithm]x509.SignatureAlgorithm
	switch pub.(type) {
	case *rsa.PublicKey:
		table = rsaAlgorithms
	case *ecdsa.PublicKey:
		table = ecdsaAlgorithms
	default:
		return x509.UnknownSignatureAlgorithm, errors.ErrSigningFailed(
			fmt.Sprintf("%T keys cannot sign X.509 structures", pub))
	}
	alg, ok := table[hash]
	if !ok {
		return x509.UnknownSignatureAlgorithm, errors.ErrSigningFailed(
			fmt.Sprintf("%s: unsupported signature hash algorithm", hash)).WithMetadata("algorithm", string(hash))
	}
	return alg, nil
}

// TruncateToMinute drops seconds and sub-seconds and converts to UTC.
func TruncateToMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// RandomSerial returns a random positive certificate serial number.
func RandomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), constants.SerialNumberBits)
	for {
		serial, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, err
		}
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}

// SubjectKeyID computes the RFC 5280 method 1 key identifier of pub.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	var info struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(spki, &info); err != nil {
		return nil, err
	}
	sum := sha1.Sum(info.PublicKey.Bytes)
	return sum[:], nil
}

// CreateCertificate builds and signs a certificate. The validity window starts
// at now and ends at req.Expires, both truncated to the minute. Extensions are
// encoded exactly in the order given; nothing else is added.
func CreateCertificate(signer crypto.Signer, req *models.SignCertificateRequest, sigAlg x509.SignatureAlgorithm, now time.Time) (*x509.Certificate, error) {
	serial := req.Serial
	if serial == nil {
		var err error
		if serial, err = RandomSerial(); err != nil {
			return nil, errors.ErrSigningFailed("failed to generate serial").WithCause(err)
		}
	}

	template := &x509.Certificate{
		SerialNumber:       serial,
		Subject:            req.Subject,
		NotBefore:          TruncateToMinute(now),
		NotAfter:           TruncateToMinute(req.Expires),
		SignatureAlgorithm: sigAlg,
		ExtraExtensions:    cloneExtensions(req.Extensions),
	}
	// The parent only contributes the issuer name.
	parent := &x509.Certificate{Subject: req.Issuer, RawSubject: req.RawIssuer}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, req.PublicKey, signer)
	if err != nil {
		return nil, errors.ErrSigningFailed("failed to sign certificate").WithCause(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.ErrSigningFailed("failed to parse signed certificate").WithCause(err)
	}
	return cert, nil
}

// CreateCRL signs the revocation list accumulated in builder.
func CreateCRL(signer crypto.Signer, builder *models.CRLBuilder, sigAlg x509.SignatureAlgorithm) (*x509.RevocationList, error) {
	if builder.Number == nil {
		return nil, errors.ErrSigningFailed("CRL number is required")
	}
	aki := builder.AuthorityKeyID
	if len(aki) == 0 {
		var err error
		if aki, err = SubjectKeyID(signer.Public()); err != nil {
			return nil, errors.ErrSigningFailed("failed to derive authority key identifier").WithCause(err)
		}
	}

	issuer := &x509.Certificate{
		Subject:      builder.Issuer,
		RawSubject:   builder.RawIssuer,
		SubjectKeyId: aki,
		KeyUsage:     x509.KeyUsageCRLSign,
		PublicKey:    signer.Public(),
	}

	entries := make([]x509.RevocationListEntry, 0, len(builder.Revoked))
	for _, rc := range builder.Revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:    rc.Serial,
			RevocationTime:  rc.RevokedAt.UTC(),
			ReasonCode:      rc.ReasonCode,
			ExtraExtensions: cloneExtensions(rc.Extensions),
		})
	}

	template := &x509.RevocationList{
		SignatureAlgorithm:        sigAlg,
		RevokedCertificateEntries: entries,
		Number:                    builder.Number,
		ThisUpdate:                builder.ThisUpdate.UTC(),
		NextUpdate:                builder.NextUpdate.UTC(),
		ExtraExtensions:           cloneExtensions(builder.Extensions),
	}

	der, err := x509.CreateRevocationList(rand.Reader, template, issuer, signer)
	if err != nil {
		return nil, errors.ErrSigningFailed("failed to sign CRL").WithCause(err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, errors.ErrSigningFailed("failed to parse signed CRL").WithCause(err)
	}
	return crl, nil
}

// CreateOCSPResponse signs an OCSP response. Without a responder certificate
// the response is signed directly by the issuer.
func CreateOCSPResponse(signer crypto.Signer, req *models.OCSPResponseRequest, sigAlg x509.SignatureAlgorithm) ([]byte, error) {
	if req.Issuer == nil {
		return nil, errors.ErrSigningFailed("OCSP issuer certificate is required")
	}
	responder := req.Responder
	if responder == nil {
		responder = req.Issuer
	}

	template := req.Template
	template.SignatureAlgorithm = sigAlg
	template.ExtraExtensions = cloneExtensions(req.Template.ExtraExtensions)

	der, err := ocsp.CreateResponse(req.Issuer, responder, template, signer)
	if err != nil {
		return nil, errors.ErrSigningFailed("failed to sign OCSP response").WithCause(err)
	}
	return der, nil
}

func cloneExtensions(in []pkix.Extension) []pkix.Extension {
	if len(in) == 0 {
		return nil
	}
	out := make([]pkix.Extension, len(in))
	copy(out, in)
	return out
}
