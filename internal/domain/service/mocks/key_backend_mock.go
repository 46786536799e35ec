package mocks

import (
	"context"
	"crypto"
	"crypto/x509"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
)

// MockKeyBackend is a mock implementation of KeyBackend
type MockKeyBackend struct {
	mock.Mock
}

var _ service.KeyBackend = (*MockKeyBackend)(nil)

func (m *MockKeyBackend) Alias() string {
	return m.Called().String(0)
}

func (m *MockKeyBackend) Kind() constants.BackendKind {
	return m.Called().Get(0).(constants.BackendKind)
}

func (m *MockKeyBackend) Equal(other service.KeyBackend) bool {
	return m.Called(other).Bool(0)
}

func (m *MockKeyBackend) CreatePrivateKey(ctx context.Context, ca *models.CertificateAuthority, keyType constants.KeyType, opts *models.CreatePrivateKeyOptions) (crypto.PublicKey, *models.UsePrivateKeyOptions, error) {
	args := m.Called(ctx, ca, keyType, opts)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0), args.Get(1).(*models.UsePrivateKeyOptions), args.Error(2)
}

func (m *MockKeyBackend) StorePrivateKey(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, opts *models.StorePrivateKeyOptions) error {
	return m.Called(ctx, ca, key, opts).Error(0)
}

func (m *MockKeyBackend) GetKey(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (crypto.Signer, error) {
	args := m.Called(ctx, ca, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(crypto.Signer), args.Error(1)
}

func (m *MockKeyBackend) IsUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) bool {
	return m.Called(ctx, ca, opts).Bool(0)
}

func (m *MockKeyBackend) CheckUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) error {
	return m.Called(ctx, ca, opts).Error(0)
}

func (m *MockKeyBackend) SignCertificate(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.SignCertificateRequest) (*x509.Certificate, error) {
	args := m.Called(ctx, ca, opts, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*x509.Certificate), args.Error(1)
}

func (m *MockKeyBackend) SignCRL(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, builder *models.CRLBuilder, algorithm constants.HashAlgorithm) (*x509.RevocationList, error) {
	args := m.Called(ctx, ca, opts, builder, algorithm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*x509.RevocationList), args.Error(1)
}

func (m *MockKeyBackend) SignOCSPResponse(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions, req *models.OCSPResponseRequest) ([]byte, error) {
	args := m.Called(ctx, ca, opts, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyBackend) GetOCSPKeySize(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (int, error) {
	args := m.Called(ctx, ca, opts)
	return args.Int(0), args.Error(1)
}

func (m *MockKeyBackend) GetOCSPKeyEllipticCurve(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (constants.EllipticCurve, error) {
	args := m.Called(ctx, ca, opts)
	return args.Get(0).(constants.EllipticCurve), args.Error(1)
}

// MockKeyBackendResolver is a mock implementation of KeyBackendResolver
type MockKeyBackendResolver struct {
	mock.Mock
}

func (m *MockKeyBackendResolver) Get(alias string) (service.KeyBackend, error) {
	args := m.Called(alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(service.KeyBackend), args.Error(1)
}

func (m *MockKeyBackendResolver) ForCA(ca *models.CertificateAuthority) (service.KeyBackend, error) {
	args := m.Called(ca)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(service.KeyBackend), args.Error(1)
}
