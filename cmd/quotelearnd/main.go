// Quotelearnd learns pricing preferences from finalized quotes.
//
// The daemon subscribes to finalized quotes on NATS, runs each through the
// learning coordinator and publishes learning events. It serves /health,
// /ready and /metrics over HTTP, and the read-side learning tools as an
// MCP server on /mcp.
//
// Usage:
//
//	# Start with ~/.config/quotelearn/config.yaml (or defaults)
//	quotelearnd
//
//	# Use another config file and override via environment
//	QUOTELEARN_EVENTS_ENABLED=true quotelearnd -config /etc/quotelearn/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/config"
	"github.com/fyrsmithlabs/quotelearn/internal/embeddings"
	"github.com/fyrsmithlabs/quotelearn/internal/events"
	"github.com/fyrsmithlabs/quotelearn/internal/extraction"
	httpserver "github.com/fyrsmithlabs/quotelearn/internal/http"
	"github.com/fyrsmithlabs/quotelearn/internal/learning"
	"github.com/fyrsmithlabs/quotelearn/internal/logging"
	mcpserver "github.com/fyrsmithlabs/quotelearn/internal/mcp"
	"github.com/fyrsmithlabs/quotelearn/internal/metrics"
	"github.com/fyrsmithlabs/quotelearn/internal/rules"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
	"github.com/fyrsmithlabs/quotelearn/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/quotelearn/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  quotelearnd [-config path]   Start the learning daemon\n")
			fmt.Fprintf(os.Stderr, "  quotelearnd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("quotelearnd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Startup order:
//  1. Configuration, telemetry and logger
//  2. Store, extractor, embedder and event connection
//  3. Coordinator with the rule file applied and optionally watched
//  4. Finalized-quote subscription
//  5. HTTP server
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		err = errors.Join(err, tel.Shutdown(context.Background()))
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	zl.Info("Starting quotelearnd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_concurrent", cfg.Server.MaxConcurrent),
		zap.Bool("telemetry", tel.IsEnabled()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps, err := initDependencies(ctx, cfg, m, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		err = errors.Join(err, deps.Close())
	}()

	zl.Info("Dependencies initialized",
		zap.Bool("nats_connected", deps.natsConn != nil),
		zap.String("extractor", deps.extractor.Name()),
		zap.Int("embedding_dimension", deps.embedder.Dimension()))

	coord, watcher, err := initCoordinator(ctx, cfg, deps, m, tel, zl)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	if deps.natsConn != nil {
		cons := newConsumer(coord, cfg.Server.MaxConcurrent, logger)
		sub, err := events.Subscribe(ctx, deps.natsConn, deps.events.FinalizedSubject, deps.events.QueueGroup, zl, cons.handle)
		if err != nil {
			return err
		}
		defer func() {
			_ = sub.Unsubscribe()
			cons.wait()
		}()
		zl.Info("Consuming finalized quotes",
			zap.String("subject", deps.events.FinalizedSubject),
			zap.String("queue", deps.events.QueueGroup))
	} else {
		zl.Warn("Events disabled; no finalized quotes will be consumed")
	}

	opts := []httpserver.Option{
		httpserver.WithVersion(cfg.Observability.ServiceName, version),
		httpserver.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(zl)),
		httpserver.WithCheck("store", deps.store.Ping),
		httpserver.WithCheck("events", deps.natsCheck()),
	}
	if cfg.Server.MCP {
		mcpSrv, err := mcpserver.NewServer(&mcpserver.Config{
			Name:    cfg.Observability.ServiceName,
			Version: version,
			Logger:  zl.Named("mcp"),
		}, coord)
		if err != nil {
			return fmt.Errorf("failed to create mcp server: %w", err)
		}
		opts = append(opts, httpserver.WithMCPHandler(mcpSrv.Handler()))
	}

	srv, err := httpserver.NewServer(zl, &httpserver.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	zl.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("mcp", cfg.Server.MCP))

	return srv.Start(ctx)
}

// dependencies holds the infrastructure the coordinator is built on.
type dependencies struct {
	store     store.Store
	extractor extraction.Extractor
	embedder  embeddings.Provider
	publisher events.Publisher
	natsConn  *nats.Conn
	events    events.Config
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() error {
	var errs []error
	if d.publisher != nil {
		errs = append(errs, d.publisher.Close())
	}
	if d.natsConn != nil {
		if err := d.natsConn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("draining nats: %w", err))
		}
	}
	if d.embedder != nil {
		errs = append(errs, d.embedder.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// natsCheck returns nil when events are disabled.
func (d *dependencies) natsCheck() httpserver.Check {
	if d.natsConn == nil {
		return nil
	}
	nc := d.natsConn
	return func(context.Context) error {
		if status := nc.Status(); status != nats.CONNECTED {
			return fmt.Errorf("nats %s", status)
		}
		return nil
	}
}

func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.NewDefaultConfig()
	if err := cfg.Section(config.SectionTelemetry, telCfg); err != nil {
		return nil, err
	}
	if cfg.Observability.EnableTelemetry {
		telCfg.Enabled = true
	}
	if cfg.Observability.ServiceName != "" {
		telCfg.ServiceName = cfg.Observability.ServiceName
	}
	telCfg.ServiceVersion = version
	return telemetry.New(ctx, telCfg)
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section(config.SectionLogging, logCfg); err != nil {
		return nil, err
	}
	if logCfg.Fields == nil {
		logCfg.Fields = map[string]string{}
	}
	logCfg.Fields["service"] = cfg.Observability.ServiceName
	logCfg.Fields["version"] = version
	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// initDependencies opens the store, builds the extractor and embedder and,
// when events are enabled, connects to NATS.
func initDependencies(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			err = errors.Join(err, deps.Close())
		}
	}()

	var storeCfg store.Config
	if err := cfg.Section(config.SectionStore, &storeCfg); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, storeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q store: %w", storeCfg.Backend, err)
	}
	deps.store = metrics.InstrumentStore(st, m)

	extCfg := extraction.DefaultConfig()
	if err := cfg.Section(config.SectionExtraction, &extCfg); err != nil {
		return nil, err
	}
	if deps.extractor, err = extraction.NewExtractor(extCfg, logger); err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	var embCfg embeddings.ProviderConfig
	if err := cfg.Section(config.SectionEmbeddings, &embCfg); err != nil {
		return nil, err
	}
	if deps.embedder, err = embeddings.NewProvider(embCfg, logger); err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	deps.events = events.DefaultConfig()
	if err := cfg.Section(config.SectionEvents, &deps.events); err != nil {
		return nil, err
	}
	deps.publisher = events.NopPublisher{}
	if deps.events.Enabled {
		nc, err := events.Connect(deps.events, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", deps.events.URL, err)
		}
		deps.natsConn = nc
		deps.publisher = events.NewNATSPublisher(nc, deps.events.SubjectPrefix, logger)
		logger.Info("Connected to NATS", zap.String("url", deps.events.URL))
	}
	return deps, nil
}

// initCoordinator builds the coordinator, applies the rule file and starts
// the rule watcher when configured. The watcher is nil when not watching.
func initCoordinator(
	ctx context.Context,
	cfg *config.Config,
	deps *dependencies,
	m *metrics.Metrics,
	tel *telemetry.Telemetry,
	logger *zap.Logger,
) (*learning.Coordinator, *rules.Watcher, error) {
	learnCfg := learning.DefaultConfig()
	if err := cfg.Section(config.SectionLearning, &learnCfg); err != nil {
		return nil, nil, err
	}
	coord, err := learning.New(learnCfg, deps.store, deps.extractor, deps.embedder, logger,
		learning.WithPublisher(deps.publisher),
		learning.WithMetrics(m),
		learning.WithTracer(tel.Tracer("github.com/fyrsmithlabs/quotelearn/internal/learning")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	if cfg.Rules.Path == "" {
		return coord, nil, nil
	}
	set, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if err := coord.ReplaceRules(set); err != nil {
		return nil, nil, fmt.Errorf("failed to apply rules from %s: %w", cfg.Rules.Path, err)
	}
	logger.Info("Rules loaded", zap.String("path", cfg.Rules.Path))

	if !cfg.Rules.Watch {
		return coord, nil, nil
	}
	w, err := rules.NewWatcher(cfg.Rules.Path, func(set rules.Set) {
		err := coord.ReplaceRules(set)
		m.RecordRuleReload(err)
		if err != nil {
			logger.Warn("rejected reloaded rules", zap.Error(err))
		}
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	w.SetDebounce(cfg.Rules.Debounce)
	w.OnReload = func(err error) {
		if err != nil {
			m.RecordRuleReload(err)
		}
	}
	if err := w.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to watch rules: %w", err)
	}
	return coord, w, nil
}
