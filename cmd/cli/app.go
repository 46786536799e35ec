package cli

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/internal/infrastructure/kms"
	"github.com/turtacn/cakeys/internal/infrastructure/monitoring"
	"github.com/turtacn/cakeys/internal/infrastructure/storage"
	"github.com/turtacn/cakeys/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired infrastructure of one command invocation.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	tracing  *monitoring.TracingManager
	registry *prometheus.Registry
	storages *storage.Registry
	backends *kms.Registry
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}

	tracing, err := monitoring.NewTracingManager(ctx, &cfg.Tracing, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, tracing: tracing}

	var kmsOpts []kms.RegistryOption
	if cfg.Metrics.Enabled || cfg.Tracing.Enabled {
		var metrics *monitoring.Metrics
		if cfg.Metrics.Enabled {
			a.registry = prometheus.NewRegistry()
			metrics = monitoring.NewMetrics(a.registry, cfg.Metrics.Namespace)
		}
		kmsOpts = append(kmsOpts, kms.WithInstrumentation(tracing.Tracer(), metricsOrNil(metrics)))
	}

	a.storages, err = storage.NewRegistry(ctx, cfg.Storages, log)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.backends, err = kms.NewRegistry(ctx, cfg, a.storages, log, kmsOpts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

// close flushes telemetry and releases backend sessions and storage clients.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.backends != nil {
		errs = append(errs, a.backends.Close())
	}
	if a.storages != nil {
		errs = append(errs, a.storages.Close())
	}
	if a.registry != nil && a.cfg.Metrics.PushGateway != "" {
		if err := monitoring.PushMetrics(ctx, a.cfg.Metrics.PushGateway, a.cfg.Metrics.Job, a.registry); err != nil {
			a.log.Warn(ctx, "failed to push metrics", logger.Err(err))
		}
	}
	errs = append(errs, a.tracing.Shutdown(ctx))
	if s, ok := a.log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return stderrors.Join(errs...)
}

// runWithApp wires the infrastructure, runs fn inside a command span and
// tears everything down afterwards.
func runWithApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx); err == nil {
			err = cerr
		}
	}()

	return monitoring.TraceOperation(ctx, a.tracing, "ca-keytool."+cmd.Name(), func(ctx context.Context) error {
		return fn(ctx, a)
	}, map[string]interface{}{"command": cmd.CommandPath()})
}

// metricsOrNil keeps a nil *Metrics from becoming a non-nil interface.
func metricsOrNil(m *monitoring.Metrics) service.Metrics {
	if m == nil {
		return nil
	}
	return m
}
