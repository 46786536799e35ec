package application

import (
	"context"
	"crypto"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
)

// KeyManagementService is the application-layer service responsible for the private key lifecycle of
// certificate authorities. It resolves the key backend of a CA and validates caller input against the
// configured key policy before any backend is touched.
// KeyManagementService 是负责证书颁发机构私钥生命周期的应用层服务。
// 它解析 CA 的密钥后端，并在访问任何后端之前根据配置的密钥策略验证调用方输入。
type KeyManagementService struct {
	backends service.KeyBackendResolver
	caCfg    config.CAConfig
	logger   logger.Logger
}

// NewKeyManagementService creates a new instance of the KeyManagementService.
// NewKeyManagementService 创建 KeyManagementService 的一个新实例。
func NewKeyManagementService(backends service.KeyBackendResolver, caCfg config.CAConfig, log logger.Logger) *KeyManagementService {
	return &KeyManagementService{
		backends: backends,
		caCfg:    caCfg,
		logger:   log.WithComponent("KeyManagementService"),
	}
}

// CreateKey generates a new private key for ca in the backend named backendAlias, or the backend
// the CA already names when backendAlias is empty. On success the key-state of ca is updated.
// CreateKey 在指定的密钥后端中为 CA 生成新私钥。
func (s *KeyManagementService) CreateKey(ctx context.Context, ca *models.CertificateAuthority, backendAlias string, req models.CreatePrivateKeyRequest) (crypto.PublicKey, *models.UsePrivateKeyOptions, error) {
	opts, err := models.NewCreatePrivateKeyOptions(s.caCfg.KeyPolicy(), req)
	if err != nil {
		return nil, nil, err
	}
	backend, err := s.backendFor(ca, backendAlias)
	if err != nil {
		return nil, nil, err
	}

	pub, use, err := backend.CreatePrivateKey(ctx, ca, opts.KeyType(), opts)
	if err != nil {
		s.logger.Error(ctx, "failed to create private key", err,
			logger.String("ca_serial", ca.NormalizedSerial()),
			logger.String("key_backend", backend.Alias()))
		return nil, nil, err
	}
	return pub, use, nil
}

// ImportKey stores a caller supplied key for ca. Only RSA and EC keys are accepted.
// ImportKey 为 CA 存储调用方提供的私钥。
func (s *KeyManagementService) ImportKey(ctx context.Context, ca *models.CertificateAuthority, backendAlias string, key crypto.PrivateKey, storagePath string, password []byte) error {
	signer, err := keycrypto.SupportedSigner(key)
	if err != nil {
		return err
	}
	opts, err := models.NewStorePrivateKeyOptions(storagePath, password)
	if err != nil {
		return err
	}
	backend, err := s.backendFor(ca, backendAlias)
	if err != nil {
		return err
	}
	return backend.StorePrivateKey(ctx, ca, signer, opts)
}

// MigrateKey copies the key of ca into the backend named targetAlias and points the CA at it.
// Keys held on a hardware token cannot be exported and fail with unsupported_key_type.
// MigrateKey 将 CA 的私钥迁移到另一个密钥后端。
func (s *KeyManagementService) MigrateKey(ctx context.Context, ca *models.CertificateAuthority, password []byte, targetAlias, storagePath string, targetPassword []byte) error {
	source, err := s.backends.ForCA(ca)
	if err != nil {
		return err
	}
	target, err := s.backends.Get(targetAlias)
	if err != nil {
		return err
	}
	if source.Equal(target) {
		return errors.ErrInvalidKeyParameters("source and target key backend are the same")
	}

	signer, err := source.GetKey(ctx, ca, models.NewUsePrivateKeyOptions(ca, password, s.caCfg))
	if err != nil {
		return err
	}
	if _, err := keycrypto.SupportedSigner(signer); err != nil {
		return err
	}
	opts, err := models.NewStorePrivateKeyOptions(storagePath, targetPassword)
	if err != nil {
		return err
	}
	if err := target.StorePrivateKey(ctx, ca, signer, opts); err != nil {
		return err
	}

	s.logger.Info(ctx, "private key migrated",
		logger.String("ca_serial", ca.NormalizedSerial()),
		logger.String("from", source.Alias()),
		logger.String("to", target.Alias()))
	return nil
}

// CheckKey reports why the key of ca is not usable. With existsOnly set only the presence of the
// key is checked, so no password is needed.
// CheckKey 检查 CA 的私钥是否可用。
func (s *KeyManagementService) CheckKey(ctx context.Context, ca *models.CertificateAuthority, password []byte, existsOnly bool) error {
	backend, err := s.backends.ForCA(ca)
	if err != nil {
		return err
	}
	var opts *models.UsePrivateKeyOptions
	if !existsOnly {
		opts = models.NewUsePrivateKeyOptions(ca, password, s.caCfg)
	}
	return backend.CheckUsable(ctx, ca, opts)
}

func (s *KeyManagementService) backendFor(ca *models.CertificateAuthority, alias string) (service.KeyBackend, error) {
	if alias == "" {
		return s.backends.ForCA(ca)
	}
	return s.backends.Get(alias)
}

//Personal.AI order the ending
