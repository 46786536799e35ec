// Package application provides the application layer services.
package application

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
	"github.com/turtacn/cakeys/pkg/utils"
)

var (
	oidExtensionKeyUsage    = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidExtensionExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}
	oidExtKeyUsageOCSP      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 9}
	oidExtensionOCSPNoCheck = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 5}
)

// OCSPKeyRequest holds the optional overrides for regenerating OCSP responder keys.
// Unset fields are derived from the CA key and the key policy.
// OCSPKeyRequest 包含重新生成 OCSP 响应者密钥的可选覆盖参数。
type OCSPKeyRequest struct {
	// Expires is the validity of the responder certificate.
	Expires time.Duration
	// Algorithm overrides the signature hash of the responder certificate.
	Algorithm constants.HashAlgorithm
	// KeyType overrides the key type; nil uses the type of the CA key.
	KeyType       *constants.KeyType
	KeySize       *int
	EllipticCurve *constants.EllipticCurve
	// Password encrypts the stored responder key.
	Password []byte
	// CAPassword unlocks the CA key; the configured password table is used otherwise.
	CAPassword []byte
}

// OCSPKeyResult describes a regenerated responder key.
type OCSPKeyResult struct {
	CASerial        string
	PrivateKeyPath  string
	CertificatePath string
	Certificate     *x509.Certificate
}

// OCSPKeyService regenerates the delegated OCSP responder key and certificate of
// certificate authorities. The responder certificate is signed through the key
// backend of the CA; key and certificate are written to a storage alias.
// OCSPKeyService 为证书颁发机构重新生成 OCSP 响应者密钥和证书。
type OCSPKeyService struct {
	backends service.KeyBackendResolver
	storage  service.Storage
	caCfg    config.CAConfig
	logger   logger.Logger
	now      func() time.Time
}

// NewOCSPKeyService creates a new OCSPKeyService writing to storageAlias.
func NewOCSPKeyService(backends service.KeyBackendResolver, storages service.StorageResolver, storageAlias string, caCfg config.CAConfig, log logger.Logger) (*OCSPKeyService, error) {
	storage, err := storages.Get(storageAlias)
	if err != nil {
		return nil, err
	}
	return &OCSPKeyService{
		backends: backends,
		storage:  storage,
		caCfg:    caCfg,
		logger:   log.WithComponent("OCSPKeyService"),
		now:      time.Now,
	}, nil
}

// errNoPrivateKey reports a CA without key-state or without a stored key.
func errNoPrivateKey(ca *models.CertificateAuthority, cause error) errors.CAError {
	return errors.NewError(
		constants.ErrCodeMissingKeyState,
		"The certificate authority has no usable private key.",
		"CA has no private key",
	).WithCause(cause).WithMetadata("ca_serial", ca.NormalizedSerial())
}

// IsNoPrivateKey reports whether Regenerate skipped a CA because it has no
// private key.
func IsNoPrivateKey(err error) bool {
	return errors.IsCode(err, constants.ErrCodeMissingKeyState)
}

// Parameters resolves the key type, size and curve of the responder key for ca.
func (s *OCSPKeyService) Parameters(ctx context.Context, ca *models.CertificateAuthority, req OCSPKeyRequest) (*models.CreatePrivateKeyOptions, error) {
	backend, err := s.backends.ForCA(ca)
	if err != nil {
		return nil, err
	}
	use := models.NewUsePrivateKeyOptions(ca, req.CAPassword, s.caCfg)

	signer, err := backend.GetKey(ctx, ca, use)
	if err != nil {
		return nil, err
	}
	caKeyType, err := keycrypto.KeyTypeOf(signer.Public())
	if err != nil {
		return nil, err
	}

	keyType := caKeyType
	if req.KeyType != nil {
		keyType = *req.KeyType
	}

	create := models.CreatePrivateKeyRequest{
		KeyType:       keyType,
		Password:      req.Password,
		Path:          constants.OCSPKeyDirectory,
		KeySize:       req.KeySize,
		EllipticCurve: req.EllipticCurve,
	}
	if keyType == caKeyType {
		switch keyType {
		case constants.KeyTypeRSA, constants.KeyTypeDSA:
			if create.KeySize == nil {
				size, err := backend.GetOCSPKeySize(ctx, ca, use)
				if err != nil {
					return nil, err
				}
				create.KeySize = &size
			}
		case constants.KeyTypeEC:
			if create.EllipticCurve == nil {
				curve, err := backend.GetOCSPKeyEllipticCurve(ctx, ca, use)
				if err != nil {
					return nil, err
				}
				create.EllipticCurve = &curve
			}
		}
	}
	return models.NewCreatePrivateKeyOptions(s.caCfg.KeyPolicy(), create)
}

// Regenerate creates a new responder key for ca and signs its certificate.
func (s *OCSPKeyService) Regenerate(ctx context.Context, ca *models.CertificateAuthority, req OCSPKeyRequest) (*OCSPKeyResult, error) {
	backend, err := s.backends.ForCA(ca)
	if err != nil {
		return nil, err
	}
	if err := backend.CheckUsable(ctx, ca, nil); err != nil {
		if errors.IsCode(err, constants.ErrCodeMissingKeyState) || errors.IsNotFoundError(err) {
			return nil, errNoPrivateKey(ca, err)
		}
		return nil, err
	}

	opts, err := s.Parameters(ctx, ca, req)
	if err != nil {
		return nil, err
	}
	key, err := keycrypto.GenerateKey(opts.KeyType(), opts.KeySize(), opts.EllipticCurve())
	if err != nil {
		return nil, err
	}

	expires := req.Expires
	if expires <= 0 {
		expires = constants.DefaultOCSPResponderValidity
	}
	extensions, err := responderExtensions()
	if err != nil {
		return nil, err
	}

	use := models.NewUsePrivateKeyOptions(ca, req.CAPassword, s.caCfg)
	cert, err := backend.SignCertificate(ctx, ca, use, &models.SignCertificateRequest{
		PublicKey:  key.Public(),
		Algorithm:  req.Algorithm,
		Issuer:     ca.Subject,
		Subject:    ca.Subject,
		Expires:    s.now().Add(expires),
		Extensions: extensions,
	})
	if err != nil {
		return nil, err
	}

	keyPEM, err := keycrypto.EncodePrivateKeyPEM(key, opts.Password())
	if err != nil {
		return nil, err
	}
	base := path.Join(opts.Path(), ca.NormalizedSerial())
	keyPath, err := s.storage.Save(ctx, base+constants.KeyFileExtension, keyPEM)
	if err != nil {
		return nil, errors.WrapError(err, constants.ErrCodeStorageUnavailable, "failed to save OCSP key")
	}
	certPath, err := s.storage.Save(ctx, base+".pem", keycrypto.EncodeCertificatePEM(cert))
	if err != nil {
		// A responder key without its certificate is unusable.
		if derr := s.storage.Delete(ctx, keyPath); derr != nil {
			s.logger.Warn(ctx, "failed to remove OCSP key after certificate save failed",
				logger.String("path", keyPath), logger.Err(derr))
		}
		return nil, errors.WrapError(err, constants.ErrCodeStorageUnavailable, "failed to save OCSP certificate")
	}

	s.logger.Info(ctx, "OCSP responder key regenerated",
		logger.String("ca_serial", ca.NormalizedSerial()),
		logger.String("key_type", opts.KeyType().String()),
		logger.String("certificate_serial", utils.FormatSerial(cert.SerialNumber)),
		logger.Any("expires", cert.NotAfter))

	return &OCSPKeyResult{
		CASerial:        ca.NormalizedSerial(),
		PrivateKeyPath:  keyPath,
		CertificatePath: certPath,
		Certificate:     cert,
	}, nil
}

// OCSPRegenerationReport lists the outcome of RegenerateAll.
type OCSPRegenerationReport struct {
	Results []*OCSPKeyResult
	// Skipped holds the serials of CAs without a usable private key.
	Skipped []string
}

// RegenerateAll regenerates responder keys for every CA in serial order. CAs
// without a private key are skipped with a warning. Any other failure, an
// unreachable storage included, aborts with the CA serial attached.
func (s *OCSPKeyService) RegenerateAll(ctx context.Context, cas []*models.CertificateAuthority, req OCSPKeyRequest) (*OCSPRegenerationReport, error) {
	sorted := make([]*models.CertificateAuthority, len(cas))
	copy(sorted, cas)
	sortBySerial(sorted)

	report := &OCSPRegenerationReport{Results: make([]*OCSPKeyResult, 0, len(sorted))}
	for _, ca := range sorted {
		res, err := s.Regenerate(ctx, ca, req)
		if IsNoPrivateKey(err) {
			s.logger.Warn(ctx, "CA has no private key", logger.String("ca_serial", ca.NormalizedSerial()))
			report.Skipped = append(report.Skipped, ca.NormalizedSerial())
			continue
		}
		if err != nil {
			return report, fmt.Errorf("%s: %w", ca.NormalizedSerial(), err)
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// SelectBySerial returns the CAs matching serials, compared in normalised form.
// Serials that match no CA are returned in unknown. An empty serials list
// selects every CA.
func SelectBySerial(cas []*models.CertificateAuthority, serials []string) (selected []*models.CertificateAuthority, unknown []string) {
	if len(serials) == 0 {
		return cas, nil
	}
	bySerial := make(map[string]*models.CertificateAuthority, len(cas))
	for _, ca := range cas {
		bySerial[ca.NormalizedSerial()] = ca
	}
	for _, serial := range serials {
		ca, ok := bySerial[utils.NormalizeSerial(serial)]
		if !ok {
			unknown = append(unknown, serial)
			continue
		}
		selected = append(selected, ca)
	}
	return selected, unknown
}

func responderExtensions() ([]pkix.Extension, error) {
	keyUsage, err := asn1.Marshal(asn1.BitString{Bytes: []byte{0x80}, BitLength: 1})
	if err != nil {
		return nil, err
	}
	extKeyUsage, err := asn1.Marshal([]asn1.ObjectIdentifier{oidExtKeyUsageOCSP})
	if err != nil {
		return nil, err
	}
	return []pkix.Extension{
		{Id: oidExtensionKeyUsage, Critical: true, Value: keyUsage},
		{Id: oidExtensionExtKeyUsage, Value: extKeyUsage},
		{Id: oidExtensionOCSPNoCheck, Value: asn1.NullBytes},
	}, nil
}

func sortBySerial(cas []*models.CertificateAuthority) {
	sort.SliceStable(cas, func(i, j int) bool {
		return cas[i].NormalizedSerial() < cas[j].NormalizedSerial()
	})
}

//Personal.AI order the ending
