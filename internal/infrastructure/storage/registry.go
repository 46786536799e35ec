package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
)

// Registry resolves storage aliases to configured storages.
type Registry struct {
	storages map[string]service.Storage
}

var _ service.StorageResolver = (*Registry)(nil)

// NewRegistry builds one storage per configured alias.
func NewRegistry(ctx context.Context, cfg map[string]config.StorageConfig, log logger.Logger) (*Registry, error) {
	aliases := make([]string, 0, len(cfg))
	for alias := range cfg {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	r := &Registry{storages: make(map[string]service.Storage, len(cfg))}
	for _, alias := range aliases {
		s, err := New(alias, cfg[alias])
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.storages[alias] = s
		log.Debug(ctx, "storage configured",
			logger.String("storage_alias", alias),
			logger.String("type", cfg[alias].Type),
			logger.String("location", s.Location("")))
	}
	return r, nil
}

// NewRegistryFrom builds a registry over already constructed storages.
func NewRegistryFrom(storages ...service.Storage) *Registry {
	r := &Registry{storages: make(map[string]service.Storage, len(storages))}
	for _, s := range storages {
		r.storages[s.Alias()] = s
	}
	return r
}

// New constructs a single storage from its configuration.
func New(alias string, cfg config.StorageConfig) (service.Storage, error) {
	switch constants.StorageType(cfg.Type) {
	case constants.StorageTypeFilesystem:
		return NewFilesystemStorage(alias, cfg.Location)
	case constants.StorageTypeMemory:
		return NewMemoryStorage(alias), nil
	case constants.StorageTypeVault:
		return NewVaultStorage(alias, cfg.Vault, cfg.Prefix)
	case constants.StorageTypeRedis:
		return NewRedisStorage(alias, cfg.Redis, cfg.Prefix), nil
	default:
		return nil, errors.ErrInvalidConfiguration(fmt.Sprintf("storage %q: unknown type %q", alias, cfg.Type))
	}
}

// Get returns the storage configured under alias.
func (r *Registry) Get(alias string) (service.Storage, error) {
	s, ok := r.storages[alias]
	if !ok {
		return nil, errors.ErrUnknownStorageAlias(alias)
	}
	return s, nil
}

// Close releases storages holding connections.
func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.storages {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return stderrors.Join(errs...)
}
