package kms

import (
	"context"
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

// keyLoader resolves the private key of a CA for the duration of one call.
type keyLoader func(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (crypto.Signer, error)

// signingPipeline holds the signing operations shared by every backend: load
// the key, pick the hash, build and sign the structure. Nothing is retried.
type signingPipeline struct {
	load   keyLoader
	hashes keycrypto.HashDefaults
	now    func() time.Time
}

func newSigningPipeline(load keyLoader, ca config.CAConfig) signingPipeline {
	return signingPipeline{
		load: load,
		hashes: keycrypto.HashDefaults{
			Default: constants.HashAlgorithm(ca.DefaultSignatureHashAlgorithm),
			DSA:     constants.HashAlgorithm(ca.DefaultDSASignatureHashAlgorithm),
		},
		now: time.Now,
	}
}

func (p signingPipeline) signer(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, algorithm constants.HashAlgorithm) (crypto.Signer, x509.SignatureAlgorithm, error) {
	signer, err := p.load(ctx, ca, opts)
	if err != nil {
		return nil, x509.UnknownSignatureAlgorithm, err
	}
	hash := p.hashes.Resolve(algorithm, signer.Public())
	sigAlg, err := keycrypto.SignatureAlgorithm(signer.Public(), hash)
	if err != nil {
		return nil, x509.UnknownSignatureAlgorithm, err
	}
	return signer, sigAlg, nil
}

// SignCertificate signs req with the key of ca. Without an explicit issuer the
// CA subject is used.
func (p signingPipeline) SignCertificate(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.SignCertificateRequest) (*x509.Certificate, error) {
	signer, sigAlg, err := p.signer(ctx, ca, opts, req.Algorithm)
	if err != nil {
		return nil, err
	}
	r := *req
	if len(r.RawIssuer) == 0 && isEmptyName(r.Issuer) {
		r.Issuer = ca.Subject
	}
	return keycrypto.CreateCertificate(signer, &r, sigAlg, p.now())
}

// SignCRL signs the entries accumulated in builder.
func (p signingPipeline) SignCRL(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, builder *models.CRLBuilder, algorithm constants.HashAlgorithm) (*x509.RevocationList, error) {
	signer, sigAlg, err := p.signer(ctx, ca, opts, algorithm)
	if err != nil {
		return nil, err
	}
	b := *builder
	if len(b.RawIssuer) == 0 && isEmptyName(b.Issuer) {
		b.Issuer = ca.Subject
	}
	return keycrypto.CreateCRL(signer, &b, sigAlg)
}

// SignOCSPResponse signs an OCSP response with the key of ca.
func (p signingPipeline) SignOCSPResponse(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.OCSPResponseRequest) ([]byte, error) {
	signer, sigAlg, err := p.signer(ctx, ca, opts, req.Algorithm)
	if err != nil {
		return nil, err
	}
	return keycrypto.CreateOCSPResponse(signer, req, sigAlg)
}

// GetOCSPKeySize returns the size of an RSA or DSA CA key.
func (p signingPipeline) GetOCSPKeySize(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (int, error) {
	signer, err := p.load(ctx, ca, opts)
	if err != nil {
		return 0, err
	}
	return keycrypto.KeySize(signer.Public())
}

// GetOCSPKeyEllipticCurve returns the curve of an EC CA key.
func (p signingPipeline) GetOCSPKeyEllipticCurve(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (constants.EllipticCurve, error) {
	signer, err := p.load(ctx, ca, opts)
	if err != nil {
		return "", err
	}
	return keycrypto.EllipticCurveOf(signer.Public())
}

// missingKeyState reports a CA without key-state, including a nil CA.
func missingKeyState(ca *models.CertificateAuthority) error {
	if ca == nil {
		return errors.ErrMissingKeyState("")
	}
	return errors.ErrMissingKeyState(ca.Serial)
}

func isEmptyName(n pkix.Name) bool {
	return len(n.Names) == 0 && len(n.ExtraNames) == 0 && n.String() == ""
}
