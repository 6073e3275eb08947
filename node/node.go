// Package node assembles a ledger node from its configuration: the merkle
// state store, the ledger application, the transaction index, the ABCI
// server the consensus engine connects to, the lookup API and the metrics
// endpoint.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/blockberries/ledgerberry/abciserver"
	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/app"
	"github.com/blockberries/ledgerberry/config"
	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/indexer/kv"
	"github.com/blockberries/ledgerberry/ledger"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/lookup"
	"github.com/blockberries/ledgerberry/metrics"
	"github.com/blockberries/ledgerberry/schemas/device"
	"github.com/blockberries/ledgerberry/schemas/identity"
	"github.com/blockberries/ledgerberry/statestore"
	"github.com/blockberries/ledgerberry/tracing/otel"
)

// Node errors.
var (
	ErrNodeAlreadyStarted = errors.New("node already started")
	ErrNodeNotStarted     = errors.New("node not started")
	ErrUnknownLedger      = errors.New("unknown ledger")
)

// Application is a ledger application that can also serve lookups.
type Application interface {
	abi.Application
	lookup.Backend
}

// Node is the main coordinator for a ledger node.
// It aggregates all components and manages their lifecycle.
type Node struct {
	cfg    *config.Config
	logger *logging.Logger

	// logOut is closed on Stop when the node opened it.
	logOut io.Closer

	// Stores
	stateStore *statestore.IAVLStore
	indexer    indexer.TxIndexer

	// Observability
	metrics        metrics.Metrics
	prometheus     *metrics.PrometheusMetrics
	tracer         *otel.Tracer
	tracerShutdown func(context.Context) error

	app Application

	// Servers
	abciServer    *abciserver.Server
	lookupServer  *lookup.Server
	metricsServer *http.Server
	metricsLn     net.Listener

	started bool
	mu      sync.Mutex
}

// Option is a functional option for configuring a Node.
type Option func(*Node)

// WithLogger sets the logger instead of building one from the logging
// section.
func WithLogger(l *logging.Logger) Option {
	return func(n *Node) {
		n.logger = l
	}
}

// NewNode creates a node from cfg. Stores are opened immediately; servers
// start on Start.
func NewNode(cfg *config.Config, opts ...Option) (_ *Node, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Node{cfg: cfg}
	for _, opt := range opts {
		opt(n)
	}

	// Release whatever was opened if a later step fails.
	defer func() {
		if err != nil {
			err = multierr.Append(err, n.close())
		}
	}()

	if n.logger == nil {
		if n.logger, n.logOut, err = newLogger(cfg.Logging); err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}
	n.logger = n.logger.WithLedger(cfg.App.Ledger)

	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, err
	}

	n.metrics = metrics.NewNopMetrics()
	if cfg.Metrics.Enabled {
		n.prometheus = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		n.metrics = n.prometheus
	}

	n.tracer = otel.NopTracer()
	if cfg.Tracing.Enabled {
		pc := otel.ProviderConfig{
			ServiceName:    "ledgerberry",
			ServiceVersion: app.Version,
			Environment:    cfg.Tracing.Environment,
			Exporter:       cfg.Tracing.Exporter,
			Endpoint:       cfg.Tracing.Endpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			Insecure:       true,
		}
		if n.tracer, n.tracerShutdown, err = otel.SetupGlobalTracer(pc); err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
	}

	if n.stateStore, err = statestore.NewIAVLStore(cfg.StateStore.Path, cfg.StateStore.CacheSize); err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	n.indexer = indexer.NopIndexer{}
	if cfg.Indexer.Enabled {
		if n.indexer, err = newIndexer(cfg.Indexer); err != nil {
			return nil, fmt.Errorf("opening tx index: %w", err)
		}
	}

	appOpts := []app.Option{
		app.WithLogger(n.logger),
		app.WithMetrics(n.metrics),
		app.WithTracer(n.tracer),
		app.WithIndexer(n.indexer),
	}
	if n.app, err = newApplication(cfg.App, n.stateStore, appOpts...); err != nil {
		return nil, err
	}

	if n.abciServer, err = abciserver.NewServer(cfg.ABCI.ListenAddr, cfg.ABCI.Transport, n.app, n.logger); err != nil {
		return nil, err
	}

	if cfg.Lookup.Enabled {
		lc := lookup.Config{
			ListenAddr:   cfg.Lookup.ListenAddr,
			CacheSize:    cfg.Lookup.CacheSize,
			ReadTimeout:  cfg.Lookup.ReadTimeout.Duration(),
			WriteTimeout: cfg.Lookup.WriteTimeout.Duration(),
		}
		n.lookupServer, err = lookup.NewServer(lc, n.app,
			lookup.WithLogger(n.logger),
			lookup.WithMetrics(n.metrics),
			lookup.WithIndexer(n.indexer),
		)
		if err != nil {
			return nil, fmt.Errorf("creating lookup server: %w", err)
		}
	}

	return n, nil
}

// newApplication instantiates the application for the configured ledger.
func newApplication(cfg config.AppConfig, kvs statestore.StateStore, opts ...app.Option) (Application, error) {
	switch cfg.Ledger {
	case config.LedgerDevice:
		return newLedgerApp[device.Fields](device.New(), kvs, cfg.LoadConcurrency, opts...), nil
	case config.LedgerIdentity:
		return newLedgerApp[identity.Fields](identity.New(), kvs, cfg.LoadConcurrency, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLedger, cfg.Ledger)
	}
}

func newLedgerApp[F any](schema app.Schema[F], kvs statestore.StateStore, concurrency int, opts ...app.Option) *app.App[F] {
	store := ledger.NewStore[F](kvs, schema).WithConcurrency(concurrency)
	return app.New[F](schema, store, opts...)
}

func newIndexer(cfg config.IndexerConfig) (indexer.TxIndexer, error) {
	switch cfg.Backend {
	case "badgerdb":
		idx, err := kv.NewBadgerIndexer(cfg.Path, kv.DefaultBadgerOptions())
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		idx, err := kv.NewLevelDBIndexer(cfg.Path)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closer = f, f
	}

	l, err := logging.NewLogger(w, cfg.Format, cfg.Level)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	return l, closer, nil
}

// Start starts the servers: ABCI first, then the lookup API and the
// metrics endpoint.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrNodeAlreadyStarted
	}

	info := n.app.Info(context.Background())
	n.logger.Info("starting node",
		"app", info.Data,
		logging.Version(info.LastVersion),
		logging.Hash(info.LastHash),
	)

	if err := n.abciServer.Start(); err != nil {
		return err
	}

	if n.lookupServer != nil {
		if err := n.lookupServer.Start(); err != nil {
			_ = n.abciServer.Stop()
			return fmt.Errorf("starting lookup server: %w", err)
		}
	}

	if n.prometheus != nil {
		if err := n.startMetrics(); err != nil {
			if n.lookupServer != nil {
				_ = n.lookupServer.Stop()
			}
			_ = n.abciServer.Stop()
			return fmt.Errorf("starting metrics server: %w", err)
		}
	}

	n.started = true
	return nil
}

func (n *Node) startMetrics() error {
	ln, err := net.Listen("tcp", n.cfg.Metrics.ListenAddr)
	if err != nil {
		return err
	}
	n.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", n.prometheus.HTTPHandler())
	n.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := n.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("metrics server stopped", logging.Error(err))
		}
	}()

	n.logger.Info("metrics server started", logging.Address(ln.Addr().String()))
	return nil
}

// Stop stops the servers in reverse order and closes the stores.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		return ErrNodeNotStarted
	}

	var err error
	if n.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, n.metricsServer.Shutdown(ctx))
		cancel()
		n.metricsServer = nil
	}
	if n.lookupServer != nil {
		err = multierr.Append(err, n.lookupServer.Stop())
	}
	err = multierr.Append(err, n.abciServer.Stop())
	err = multierr.Append(err, n.close())

	n.started = false
	n.logger.Info("node stopped")
	return err
}

// Close releases the stores of a node that was never started or failed to
// start. A running node must be stopped instead.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrNodeAlreadyStarted
	}
	return n.close()
}

// close releases the stores, the tracer and the log output.
func (n *Node) close() error {
	var err error
	if n.indexer != nil {
		err = multierr.Append(err, n.indexer.Close())
		n.indexer = nil
	}
	if n.stateStore != nil {
		err = multierr.Append(err, n.stateStore.Close())
		n.stateStore = nil
	}
	if n.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, n.tracerShutdown(ctx))
		cancel()
		n.tracerShutdown = nil
	}
	if n.logOut != nil {
		err = multierr.Append(err, n.logOut.Close())
		n.logOut = nil
	}
	return err
}

// IsRunning returns whether the node is running.
func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// App returns the ledger application.
func (n *Node) App() Application {
	return n.app
}

// ABCIAddr returns the ABCI listen address.
func (n *Node) ABCIAddr() string {
	return n.abciServer.Addr()
}

// LookupAddr returns the lookup API address, or "" when it is disabled.
func (n *Node) LookupAddr() string {
	if n.lookupServer == nil {
		return ""
	}
	return n.lookupServer.Addr()
}

// MetricsAddr returns the metrics address, or "" when it is not serving.
func (n *Node) MetricsAddr() string {
	if n.metricsLn == nil {
		return ""
	}
	return n.metricsLn.Addr().String()
}
