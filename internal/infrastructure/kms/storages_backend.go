package kms

import (
	"context"
	"crypto"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
)

// StoragesBackend keeps PKCS#8 encoded private keys in a named storage. The
// key of a CA lives at {path}/{normalised serial}.key and the stored name is
// recorded as the "path" key-state option.
type StoragesBackend struct {
	signingPipeline

	alias        string
	storageAlias string
	storage      service.Storage
	logger       logger.Logger
}

var _ service.KeyBackend = (*StoragesBackend)(nil)

// NewStoragesBackend resolves storageAlias immediately and fails with
// unknown_storage_alias when it is not configured.
func NewStoragesBackend(alias, storageAlias string, storages service.StorageResolver, ca config.CAConfig, log logger.Logger) (*StoragesBackend, error) {
	storage, err := storages.Get(storageAlias)
	if err != nil {
		return nil, err
	}
	b := &StoragesBackend{
		alias:        alias,
		storageAlias: storageAlias,
		storage:      storage,
		logger:       log.WithComponent("StoragesBackend").WithFields(logger.String("key_backend", alias)),
	}
	b.signingPipeline = newSigningPipeline(b.GetKey, ca)
	return b, nil
}

func (b *StoragesBackend) Alias() string { return b.alias }

func (b *StoragesBackend) Kind() constants.BackendKind { return constants.BackendKindStorages }

// StorageAlias returns the storage the keys are written to.
func (b *StoragesBackend) StorageAlias() string { return b.storageAlias }

// Equal reports whether other writes to the same storage alias.
func (b *StoragesBackend) Equal(other service.KeyBackend) bool {
	o, ok := unwrap(other).(*StoragesBackend)
	return ok && o.storageAlias == b.storageAlias
}

func (b *StoragesBackend) CreatePrivateKey(ctx context.Context, ca *models.CertificateAuthority, keyType constants.KeyType, opts *models.CreatePrivateKeyOptions) (crypto.PublicKey, *models.UsePrivateKeyOptions, error) {
	if ca == nil {
		return nil, nil, missingKeyState(ca)
	}
	if opts == nil {
		return nil, nil, errors.ErrInvalidKeyParameters("create options are required")
	}
	if keyType != opts.KeyType() {
		return nil, nil, errors.ErrInvalidKeyParameters(fmt.Sprintf(
			"key type %s does not match the options for %s", keyType, opts.KeyType()))
	}

	key, err := keycrypto.GenerateKey(opts.KeyType(), opts.KeySize(), opts.EllipticCurve())
	if err != nil {
		return nil, nil, err
	}
	password := opts.Password()
	if err := b.write(ctx, ca, key, opts.Path(), password); err != nil {
		return nil, nil, err
	}

	b.logger.Info(ctx, "private key created",
		logger.String("ca_serial", ca.NormalizedSerial()),
		logger.String("key_type", opts.KeyType().String()),
		logger.Bool("encrypted", password != nil))
	return key.Public(), models.NewUsePrivateKeyOptions(ca, password, nil), nil
}

func (b *StoragesBackend) StorePrivateKey(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, opts *models.StorePrivateKeyOptions) error {
	if ca == nil {
		return missingKeyState(ca)
	}
	if opts == nil {
		return errors.ErrInvalidKeyParameters("store options are required")
	}
	signer, err := keycrypto.SupportedSigner(key)
	if err != nil {
		return err
	}
	if err := b.write(ctx, ca, signer, opts.Path(), opts.Password()); err != nil {
		return err
	}
	b.logger.Info(ctx, "private key stored", logger.String("ca_serial", ca.NormalizedSerial()))
	return nil
}

// write serialises key and saves it. The key-state of ca is only updated once
// the storage reported success.
func (b *StoragesBackend) write(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, dir string, password []byte) error {
	der, err := keycrypto.MarshalPrivateKey(key, password)
	if err != nil {
		return err
	}
	name := path.Join(dir, ca.NormalizedSerial()+constants.KeyFileExtension)
	stored, err := b.storage.Save(ctx, name, der)
	if err != nil {
		return errors.WrapError(err, constants.ErrCodeStorageUnavailable, "failed to save private key")
	}
	ca.SetKeyState(b.alias, map[string]string{constants.KeyBackendOptionPath: stored})
	return nil
}

func (b *StoragesBackend) GetKey(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) (crypto.Signer, error) {
	keyPath, ok := ca.KeyPath()
	if !ok {
		return nil, missingKeyState(ca)
	}

	data, err := b.read(ctx, keyPath)
	if err != nil {
		return nil, err
	}

	key, err := keycrypto.ParsePrivateKey(data, opts.Password())
	if err != nil {
		return nil, errors.ErrKeyDecryptionFailed(ca.Serial).WithCause(err)
	}
	return keycrypto.SupportedSigner(key)
}

func (b *StoragesBackend) read(ctx context.Context, keyPath string) ([]byte, error) {
	rc, err := b.storage.Open(ctx, keyPath)
	if err != nil {
		return nil, b.openError(keyPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.ErrStorageUnavailable(b.storageAlias, err)
	}
	return data, nil
}

func (b *StoragesBackend) openError(keyPath string, err error) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return errors.ErrKeyFileNotFound(b.storage.Location(keyPath)).WithCause(err)
	}
	return errors.WrapError(err, constants.ErrCodeStorageUnavailable, "failed to open private key")
}

func (b *StoragesBackend) IsUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) bool {
	if _, ok := ca.KeyPath(); !ok {
		return false
	}
	if err := b.CheckUsable(ctx, ca, opts); err != nil {
		b.logger.Debug(ctx, "private key is not usable",
			logger.String("ca_serial", ca.NormalizedSerial()),
			logger.Err(err))
		return false
	}
	return true
}

// CheckUsable with nil opts only checks that the key exists.
func (b *StoragesBackend) CheckUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) error {
	keyPath, ok := ca.KeyPath()
	if !ok {
		return missingKeyState(ca)
	}

	if opts == nil {
		exists, err := b.storage.Exists(ctx, keyPath)
		if err != nil {
			return errors.WrapError(err, constants.ErrCodeStorageUnavailable, "failed to check private key")
		}
		if !exists {
			return errors.ErrKeyFileNotFound(b.storage.Location(keyPath))
		}
		return nil
	}

	if _, err := b.GetKey(ctx, ca, opts); err != nil {
		return errors.WrapError(err, constants.ErrCodeInternal, "private key is not usable")
	}
	return nil
}
