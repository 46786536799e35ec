package kms

import (
	"context"
	"crypto"
	"crypto/x509"
	"time"

	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedBackend decorates a KeyBackend with spans, metrics and error logs.
type InstrumentedBackend struct {
	next    service.KeyBackend
	tracer  trace.Tracer
	metrics service.Metrics
	logger  logger.Logger
}

var _ service.KeyBackend = (*InstrumentedBackend)(nil)

// NewInstrumentedBackend wraps next. tracer and metrics may be nil.
func NewInstrumentedBackend(next service.KeyBackend, tracer trace.Tracer, metrics service.Metrics, log logger.Logger) *InstrumentedBackend {
	return &InstrumentedBackend{
		next:    next,
		tracer:  tracer,
		metrics: metrics,
		logger:  log.WithComponent("KeyBackend").WithFields(logger.String("key_backend", next.Alias())),
	}
}

// Unwrap returns the decorated backend.
func (b *InstrumentedBackend) Unwrap() service.KeyBackend { return b.next }

func unwrap(kb service.KeyBackend) service.KeyBackend {
	for {
		w, ok := kb.(interface{ Unwrap() service.KeyBackend })
		if !ok {
			return kb
		}
		kb = w.Unwrap()
	}
}

func (b *InstrumentedBackend) start(ctx context.Context, op string, ca *models.CertificateAuthority) (context.Context, func(error)) {
	began := time.Now()
	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, "kms."+op, trace.WithAttributes(
			attribute.String("key_backend", b.next.Alias()),
			attribute.String("ca_serial", ca.NormalizedSerial()),
		))
	}
	ctx = context.WithValue(ctx, constants.ContextKeyCASerial, ca.NormalizedSerial())

	return ctx, func(err error) {
		if b.metrics != nil {
			b.metrics.RecordKeyOperation(b.next.Alias(), op, time.Since(began), err)
		}
		if err != nil {
			b.logger.Error(ctx, "key backend operation failed", err,
				logger.String("operation", op),
				logger.String("ca_serial", ca.NormalizedSerial()),
				logger.String("code", string(errors.CodeOf(err))),
				logger.Bool("transient", errors.IsTransientError(err)))
		}
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}
}

func (b *InstrumentedBackend) Alias() string { return b.next.Alias() }

func (b *InstrumentedBackend) Kind() constants.BackendKind { return b.next.Kind() }

func (b *InstrumentedBackend) Equal(other service.KeyBackend) bool {
	return b.next.Equal(unwrap(other))
}

func (b *InstrumentedBackend) CreatePrivateKey(ctx context.Context, ca *models.CertificateAuthority, keyType constants.KeyType, opts *models.CreatePrivateKeyOptions) (crypto.PublicKey, *models.UsePrivateKeyOptions, error) {
	ctx, done := b.start(ctx, "create_private_key", ca)
	pub, use, err := b.next.CreatePrivateKey(ctx, ca, keyType, opts)
	done(err)
	if err == nil && b.metrics != nil {
		b.metrics.RecordKeyCreated(b.next.Alias(), keyType)
	}
	return pub, use, err
}

func (b *InstrumentedBackend) StorePrivateKey(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, opts *models.StorePrivateKeyOptions) error {
	ctx, done := b.start(ctx, "store_private_key", ca)
	err := b.next.StorePrivateKey(ctx, ca, key, opts)
	done(err)
	return err
}

func (b *InstrumentedBackend) GetKey(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (crypto.Signer, error) {
	ctx, done := b.start(ctx, "get_key", ca)
	key, err := b.next.GetKey(ctx, ca, opts)
	done(err)
	return key, err
}

// IsUsable is never logged as a failure; only the probe outcome is counted.
func (b *InstrumentedBackend) IsUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) bool {
	usable := b.next.IsUsable(ctx, ca, opts)
	if b.metrics != nil {
		b.metrics.RecordUsabilityProbe(b.next.Alias(), usable)
	}
	return usable
}

func (b *InstrumentedBackend) CheckUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) error {
	ctx, done := b.start(ctx, "check_usable", ca)
	err := b.next.CheckUsable(ctx, ca, opts)
	done(err)
	return err
}

func (b *InstrumentedBackend) SignCertificate(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.SignCertificateRequest) (*x509.Certificate, error) {
	ctx, done := b.start(ctx, "sign_certificate", ca)
	cert, err := b.next.SignCertificate(ctx, ca, opts, req)
	done(err)
	return cert, err
}

func (b *InstrumentedBackend) SignCRL(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, builder *models.CRLBuilder, algorithm constants.HashAlgorithm) (*x509.RevocationList, error) {
	ctx, done := b.start(ctx, "sign_crl", ca)
	crl, err := b.next.SignCRL(ctx, ca, opts, builder, algorithm)
	done(err)
	return crl, err
}

func (b *InstrumentedBackend) SignOCSPResponse(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.OCSPResponseRequest) ([]byte, error) {
	ctx, done := b.start(ctx, "sign_ocsp_response", ca)
	der, err := b.next.SignOCSPResponse(ctx, ca, opts, req)
	done(err)
	return der, err
}

func (b *InstrumentedBackend) GetOCSPKeySize(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (int, error) {
	ctx, done := b.start(ctx, "get_ocsp_key_size", ca)
	size, err := b.next.GetOCSPKeySize(ctx, ca, opts)
	done(err)
	return size, err
}

func (b *InstrumentedBackend) GetOCSPKeyEllipticCurve(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (constants.EllipticCurve, error) {
	ctx, done := b.start(ctx, "get_ocsp_key_elliptic_curve", ca)
	curve, err := b.next.GetOCSPKeyEllipticCurve(ctx, ca, opts)
	done(err)
	return curve, err
}
