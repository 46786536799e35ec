package kms

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"

	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// RegistryOption customises NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	tracer  trace.Tracer
	metrics service.Metrics
}

// WithInstrumentation wraps every backend in an InstrumentedBackend.
func WithInstrumentation(tracer trace.Tracer, metrics service.Metrics) RegistryOption {
	return func(o *registryOptions) {
		o.tracer = tracer
		o.metrics = metrics
	}
}

// Registry resolves key backend aliases. Backends are built once at start-up.
type Registry struct {
	backends map[string]service.KeyBackend
}

var _ service.KeyBackendResolver = (*Registry)(nil)

// NewRegistry builds every configured key backend. A storages backend naming
// an unknown storage alias fails the whole registry.
func NewRegistry(ctx context.Context, cfg *config.Config, storages service.StorageResolver, log logger.Logger, opts ...RegistryOption) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	aliases := make([]string, 0, len(cfg.KeyBackends))
	for alias := range cfg.KeyBackends {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	r := &Registry{backends: make(map[string]service.KeyBackend, len(aliases))}
	for _, alias := range aliases {
		kb, err := newBackend(alias, cfg.KeyBackends[alias], cfg.CA, storages, log)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		if o.tracer != nil || o.metrics != nil {
			kb = NewInstrumentedBackend(kb, o.tracer, o.metrics, log)
		}
		r.backends[alias] = kb
		log.Debug(ctx, "key backend configured",
			logger.String("key_backend", alias),
			logger.String("backend", cfg.KeyBackends[alias].Backend))
	}
	return r, nil
}

// NewRegistryFrom builds a registry over already constructed backends.
func NewRegistryFrom(backends ...service.KeyBackend) *Registry {
	r := &Registry{backends: make(map[string]service.KeyBackend, len(backends))}
	for _, kb := range backends {
		r.backends[kb.Alias()] = kb
	}
	return r
}

func newBackend(alias string, kbc config.KeyBackendConfig, ca config.CAConfig, storages service.StorageResolver, log logger.Logger) (service.KeyBackend, error) {
	switch constants.BackendKind(kbc.Backend) {
	case constants.BackendKindStorages:
		return NewStoragesBackend(alias, kbc.StorageAlias, storages, ca, log)
	case constants.BackendKindPKCS11:
		return NewPKCS11Backend(alias, kbc.PKCS11, ca, log)
	}
	return nil, errors.ErrInvalidConfiguration(fmt.Sprintf("key backend %q: unknown backend %q", alias, kbc.Backend))
}

// Get returns the backend configured under alias.
func (r *Registry) Get(alias string) (service.KeyBackend, error) {
	kb, ok := r.backends[alias]
	if !ok {
		return nil, errors.ErrUnknownKeyBackend(alias)
	}
	return kb, nil
}

// ForCA returns the backend holding the key of ca, or the default backend
// when ca names none.
func (r *Registry) ForCA(ca *models.CertificateAuthority) (service.KeyBackend, error) {
	var alias string
	if ca != nil {
		alias = ca.KeyBackendAlias
	}
	if alias == "" {
		alias = constants.DefaultKeyBackendAlias
	}
	return r.Get(alias)
}

// Aliases returns the configured aliases in sorted order.
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.backends))
	for alias := range r.backends {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Close releases backends holding sessions.
func (r *Registry) Close() error {
	var errs []error
	for _, kb := range r.backends {
		if c, ok := unwrap(kb).(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return stderrors.Join(errs...)
}
