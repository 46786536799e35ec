package kms

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/infrastructure/monitoring"
	"github.com/turtacn/cakeys/internal/infrastructure/storage"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() *config.Config {
	return &config.Config{
		CA: config.DefaultCAConfig(),
		Storages: map[string]config.StorageConfig{
			"default": {Type: "memory"},
			"backup":  {Type: "memory"},
		},
		KeyBackends: map[string]config.KeyBackendConfig{
			"default":   {Backend: "storages", StorageAlias: "default"},
			"secondary": {Backend: "storages", StorageAlias: "backup"},
		},
	}
}

func newStorages(t *testing.T, cfg *config.Config) *storage.Registry {
	t.Helper()
	r, err := storage.NewRegistry(context.Background(), cfg.Storages, logger.NewNoopLogger())
	require.NoError(t, err)
	return r
}

func TestRegistry_GetAndForCA(t *testing.T) {
	cfg := testConfig()
	r, err := NewRegistry(context.Background(), cfg, newStorages(t, cfg), logger.NewNoopLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"default", "secondary"}, r.Aliases())

	kb, err := r.ForCA(&models.CertificateAuthority{Serial: "01"})
	require.NoError(t, err)
	assert.Equal(t, "default", kb.Alias())
	assert.Equal(t, constants.BackendKindStorages, kb.Kind())

	kb, err = r.ForCA(&models.CertificateAuthority{Serial: "01", KeyBackendAlias: "secondary"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", kb.Alias())

	_, err = r.Get("hsm")
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnknownKeyBackend))
}

func TestRegistry_UnknownStorageAlias(t *testing.T) {
	cfg := testConfig()
	storages := newStorages(t, cfg)
	cfg.KeyBackends["broken"] = config.KeyBackendConfig{Backend: "storages", StorageAlias: "nowhere"}

	_, err := NewRegistry(context.Background(), cfg, storages, logger.NewNoopLogger())
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnknownStorageAlias))
}

func TestRegistry_WithInstrumentation(t *testing.T) {
	cfg := testConfig()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry(), "test")
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	r, err := NewRegistry(context.Background(), cfg, newStorages(t, cfg), logger.NewNoopLogger(),
		WithInstrumentation(tracer, metrics))
	require.NoError(t, err)

	kb, err := r.Get("default")
	require.NoError(t, err)
	require.IsType(t, &InstrumentedBackend{}, kb)

	ctx := context.Background()
	ca := &models.CertificateAuthority{Serial: "0A", Subject: pkix.Name{CommonName: "Instrumented CA"}}
	opts, err := models.NewCreatePrivateKeyOptions(cfg.CA.KeyPolicy(), models.CreatePrivateKeyRequest{KeyType: constants.KeyTypeEC})
	require.NoError(t, err)

	_, use, err := kb.CreatePrivateKey(ctx, ca, constants.KeyTypeEC, opts)
	require.NoError(t, err)
	assert.True(t, kb.IsUsable(ctx, ca, use))

	_, err = kb.GetKey(ctx, &models.CertificateAuthority{Serial: "0B"}, nil)
	assert.True(t, errors.IsCode(err, constants.ErrCodeMissingKeyState))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeysCreated.WithLabelValues("default", "EC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeyOperations.WithLabelValues("default", "create_private_key", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeyOperations.WithLabelValues("default", "get_key", string(constants.ErrCodeMissingKeyState))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UsabilityProbes.WithLabelValues("default", "true")))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "kms.create_private_key", spans[0].Name())
	assert.Equal(t, "kms.get_key", spans[1].Name())
}

func TestInstrumentedBackend_NilCA(t *testing.T) {
	cfg := testConfig()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	r, err := NewRegistry(context.Background(), cfg, newStorages(t, cfg), logger.NewNoopLogger(),
		WithInstrumentation(tracer, nil))
	require.NoError(t, err)

	kb, err := r.ForCA(nil)
	require.NoError(t, err)
	assert.Equal(t, "default", kb.Alias())

	ctx := context.Background()
	_, err = kb.GetKey(ctx, nil, nil)
	assert.True(t, errors.IsCode(err, constants.ErrCodeMissingKeyState))
	assert.True(t, errors.IsCode(kb.CheckUsable(ctx, nil, nil), constants.ErrCodeMissingKeyState))
	assert.False(t, kb.IsUsable(ctx, nil, nil))
	assert.Len(t, recorder.Ended(), 2)
}

// downStorage reports every lookup as an unreachable medium.
type downStorage struct {
	*storage.MemoryStorage
}

func (s downStorage) Exists(ctx context.Context, name string) (bool, error) {
	return false, errors.ErrStorageUnavailable(s.Alias(), context.DeadlineExceeded)
}

func TestInstrumentedBackend_LogsTransientFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	next, err := NewStoragesBackend("default", "default",
		storage.NewRegistryFrom(downStorage{storage.NewMemoryStorage("default")}),
		config.DefaultCAConfig(), logger.NewNoopLogger())
	require.NoError(t, err)
	kb := NewInstrumentedBackend(next, nil, nil, monitoring.NewZapLoggerFromCore(core))

	ctx := context.Background()
	ca := &models.CertificateAuthority{Serial: "0D"}
	ca.SetKeyState("default", map[string]string{constants.KeyBackendOptionPath: "ca/0D.key"})

	assert.True(t, errors.IsTransientError(kb.CheckUsable(ctx, ca, nil)))
	_, err = kb.GetKey(ctx, &models.CertificateAuthority{Serial: "0E"}, nil)
	assert.True(t, errors.IsCode(err, constants.ErrCodeMissingKeyState))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[0].ContextMap()["transient"])
	assert.Equal(t, string(constants.ErrCodeStorageUnavailable), entries[0].ContextMap()["code"])
	assert.Equal(t, false, entries[1].ContextMap()["transient"])
}

func TestInstrumentedBackend_PreservesExtensionOrder(t *testing.T) {
	cfg := testConfig()
	r, err := NewRegistry(context.Background(), cfg, newStorages(t, cfg), logger.NewNoopLogger(),
		WithInstrumentation(nil, nil))
	require.NoError(t, err)
	kb, err := r.Get("default")
	require.NoError(t, err)

	ctx := context.Background()
	ca := &models.CertificateAuthority{Serial: "0C", Subject: pkix.Name{CommonName: "Test CA"}}
	opts, err := models.NewCreatePrivateKeyOptions(cfg.CA.KeyPolicy(), models.CreatePrivateKeyRequest{KeyType: constants.KeyTypeEC})
	require.NoError(t, err)
	pub, use, err := kb.CreatePrivateKey(ctx, ca, constants.KeyTypeEC, opts)
	require.NoError(t, err)

	a := pkix.Extension{Id: asn1.ObjectIdentifier{1, 2, 3, 4}, Value: []byte{0x05, 0x00}}
	b := pkix.Extension{Id: asn1.ObjectIdentifier{1, 2, 3, 5}, Critical: true, Value: []byte{0x05, 0x00}}

	sign := func(exts ...pkix.Extension) []pkix.Extension {
		cert, err := kb.SignCertificate(ctx, ca, use, &models.SignCertificateRequest{
			PublicKey:  pub,
			Subject:    pkix.Name{CommonName: "leaf"},
			Expires:    time.Now().Add(time.Hour),
			Extensions: exts,
		})
		require.NoError(t, err)
		return cert.Extensions
	}

	assert.Equal(t, []pkix.Extension{a, b}, sign(a, b))
	assert.Equal(t, []pkix.Extension{b, a}, sign(b, a))
}
