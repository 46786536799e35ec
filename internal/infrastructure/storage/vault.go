package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	vault "github.com/hashicorp/vault/api"
	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/utils"
)

const (
	defaultVaultMount = "secret"
	vaultDataField    = "data"
)

// VaultStorage stores blobs as base64 values in a Vault KV version 2 engine.
// Each blob is one secret at <mount>/data/<prefix>/<name>.
type VaultStorage struct {
	alias  string
	kv     *vault.KVv2
	mount  string
	prefix string
}

// NewVaultStorage builds a client from cfg.
func NewVaultStorage(alias string, cfg config.VaultConfig, prefix string) (*VaultStorage, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration(fmt.Sprintf("storage %q: invalid vault client configuration", alias)).WithCause(err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return NewVaultStorageWithClient(alias, client, cfg.MountPath, prefix), nil
}

// NewVaultStorageWithClient wraps an existing Vault client.
func NewVaultStorageWithClient(alias string, client *vault.Client, mount, prefix string) *VaultStorage {
	if mount == "" {
		mount = defaultVaultMount
	}
	return &VaultStorage{alias: alias, kv: client.KVv2(mount), mount: mount, prefix: prefix}
}

var _ service.Storage = (*VaultStorage)(nil)

func (s *VaultStorage) Alias() string { return s.alias }

func (s *VaultStorage) Location(name string) string {
	return fmt.Sprintf("vault://%s/data/%s", s.mount, s.secretPath(name))
}

func (s *VaultStorage) secretPath(name string) string {
	return path.Join(s.prefix, name)
}

func (s *VaultStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	_, err = s.kv.Put(ctx, s.secretPath(clean), map[string]interface{}{
		vaultDataField: utils.Base64Encode(data),
	})
	if err != nil {
		return "", errors.ErrStorageUnavailable(s.alias, err)
	}
	return clean, nil
}

func (s *VaultStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	secret, err := s.kv.Get(ctx, s.secretPath(clean))
	if err != nil {
		if stderrors.Is(err, vault.ErrSecretNotFound) {
			return nil, s.notFound(clean)
		}
		return nil, errors.ErrStorageUnavailable(s.alias, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, s.notFound(clean)
	}

	encoded, ok := secret.Data[vaultDataField].(string)
	if !ok {
		return nil, errors.ErrStorageUnavailable(s.alias, fmt.Errorf("%s: secret has no %q field", clean, vaultDataField))
	}
	data, err := utils.Base64Decode(encoded)
	if err != nil {
		return nil, errors.ErrStorageUnavailable(s.alias, fmt.Errorf("%s: %w", clean, err))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *VaultStorage) Exists(ctx context.Context, name string) (bool, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = rc.Close()
	return true, nil
}

// Delete removes every version of the secret.
func (s *VaultStorage) Delete(ctx context.Context, name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := s.kv.DeleteMetadata(ctx, s.secretPath(clean)); err != nil {
		return errors.ErrStorageUnavailable(s.alias, err)
	}
	return nil
}

func (s *VaultStorage) notFound(name string) error {
	return &fs.PathError{Op: "open", Path: s.Location(name), Err: fs.ErrNotExist}
}
