package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miladsoleymani/lakesink/broker"
	"github.com/miladsoleymani/lakesink/config"
	"github.com/miladsoleymani/lakesink/core"
	"github.com/miladsoleymani/lakesink/core/middleware"
	"github.com/miladsoleymani/lakesink/internal/eventlog"
	"github.com/miladsoleymani/lakesink/internal/logging"
	"github.com/miladsoleymani/lakesink/internal/metrics"
	"github.com/miladsoleymani/lakesink/sink"
	"github.com/miladsoleymani/lakesink/sink/adls"
	"github.com/miladsoleymani/lakesink/sink/localfs"
	"github.com/miladsoleymani/lakesink/sink/memory"
)

const metricsShutdownTimeout = 5 * time.Second

func run(c *cli.Context) error {
	verbose := c.Bool("verbose")

	sugar, err := logging.NewSugaredLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sugar.Infow("config",
		"verbose", verbose,
		"broker", cfg.Broker.Driver,
		"hosts", cfg.Broker.Hosts,
		"vpn", cfg.Broker.VPN,
		"username", cfg.Broker.Username,
		"reconnectRetries", cfg.Broker.ReconnectRetries,
		"reconnectInterval", cfg.Broker.ReconnectInterval,
		"queue", cfg.Queue,
		"topicPattern", cfg.TopicPattern,
		"shutdownGrace", cfg.ShutdownGrace,
		"nackDelay", cfg.NackDelay,
		"storageBackend", cfg.Storage.Backend,
		"fileSystem", cfg.Storage.FileSystem,
		"fileName", cfg.Storage.FileName,
		"metricsAddr", cfg.MetricsAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, sugar, prometheus.NewRegistry())
}

// serve connects, binds and relays messages until ctx is cancelled. A
// missing queue is logged and treated as a clean exit.
func serve(ctx context.Context, cfg config.Config, sugar *zap.SugaredLogger, registry *prometheus.Registry) error {
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	sugar.Infow("storage ready", "backend", cfg.Storage.Backend)

	b, err := broker.Create(cfg.Broker.Driver, cfg.Broker.Config())
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	b.AddEventListener(eventlog.New(sugar))
	b.AddEventListener(m)

	sugar.Infow("connecting to broker", "broker", cfg.Broker.Driver, "hosts", cfg.Broker.Hosts)
	if err := b.Connect(ctx); err != nil {
		b.Close() //nolint:errcheck // connect already failed
		return fmt.Errorf("failed to connect to %s broker: %w", cfg.Broker.Driver, err)
	}
	sugar.Info("broker connected")

	snk := sink.New(store,
		sink.WithFileName(cfg.Storage.FileName),
		sink.WithLogger(sugar),
		sink.WithRecorder(m),
		sink.WithTimeout(cfg.Storage.OperationTimeout),
	)

	r := newRouter(b, cfg, sugar, m, snk.Handle)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// Router goroutine - blocks until shutdown, bind failure or connection loss
	g.Go(func() error {
		defer cancel()
		sugar.Infow("binding to queue", "queue", cfg.Queue)
		err := r.Start(gctx)
		switch {
		case errors.Is(err, core.ErrQueueNotFound):
			sugar.Errorw(fmt.Sprintf("make sure queue %s exists on broker", cfg.Queue), "error", err)
			return nil
		case err != nil:
			return fmt.Errorf("router: %w", err)
		}
		sugar.Info("disconnected from broker")
		return nil
	})

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, registry, m.Health)
		errCh := server.Start()
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr)

		// Metrics server goroutine - stops with the router
		g.Go(func() error {
			select {
			case <-gctx.Done():
				shutdownCtx, done := context.WithTimeout(context.Background(), metricsShutdownTimeout)
				defer done()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			}
		})
	}

	return g.Wait()
}

// newRouter routes the configured pattern to h. Recovery is innermost so a
// recovered panic is still logged and counted as a failure.
func newRouter(b core.Broker, cfg config.Config, sugar *zap.SugaredLogger, m *metrics.Metrics, h core.HandlerFunc) *core.Router {
	r := core.New(b, cfg.Queue)
	r.SetShutdownGrace(cfg.ShutdownGrace)
	r.SetNackDelay(cfg.NackDelay)
	r.Use(middleware.Logging(sugar))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Recovery(sugar))
	r.Handle(cfg.TopicPattern, h)
	return r
}

func newStore(ctx context.Context, cfg config.StorageConfig) (sink.Store, error) {
	var store sink.Store
	switch cfg.Backend {
	case config.BackendADLS:
		s, err := adls.New(cfg.ADLS())
		if err != nil {
			return nil, fmt.Errorf("failed to create data lake client: %w", err)
		}
		store = s
	case config.BackendLocalFS:
		if err := os.MkdirAll(cfg.LocalRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", cfg.LocalRoot, err)
		}
		store = localfs.New(cfg.LocalRoot)
	case config.BackendMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage %s unreachable: %w", cfg.Backend, err)
	}
	return store, nil
}
