package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Ledger names.
const (
	LedgerDevice   = "device"
	LedgerIdentity = "identity"
)

// Config is the main configuration for a ledger node.
type Config struct {
	App        AppConfig        `toml:"app"`
	ABCI       ABCIConfig       `toml:"abci"`
	StateStore StateStoreConfig `toml:"statestore"`
	Lookup     LookupConfig     `toml:"lookup"`
	Indexer    IndexerConfig    `toml:"indexer"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Tracing    TracingConfig    `toml:"tracing"`
	Logging    LoggingConfig    `toml:"logging"`
}

// AppConfig selects the ledger and tunes the application.
type AppConfig struct {
	// Ledger is the ledger variant to run ("device" or "identity").
	Ledger string `toml:"ledger"`

	// LoadConcurrency bounds concurrent entity reads per transaction.
	LoadConcurrency int `toml:"load_concurrency"`
}

// ABCIConfig contains the consensus connection configuration.
type ABCIConfig struct {
	// ListenAddr is the address Tendermint connects to
	// ("tcp://host:port" or "unix://path").
	ListenAddr string `toml:"listen_addr"`

	// Transport is "socket" or "grpc".
	Transport string `toml:"transport"`
}

// StateStoreConfig contains state storage configuration.
type StateStoreConfig struct {
	// Path is the directory path for state storage.
	Path string `toml:"path"`

	// CacheSize is the IAVL node cache size.
	CacheSize int `toml:"cache_size"`
}

// LookupConfig contains the HTTP lookup API configuration.
type LookupConfig struct {
	// Enabled determines whether the lookup API is served.
	Enabled bool `toml:"enabled"`

	// ListenAddr is the HTTP listen address.
	ListenAddr string `toml:"listen_addr"`

	// CacheSize is the number of identifier to key derivations cached.
	CacheSize int `toml:"cache_size"`

	// ReadTimeout bounds reading a request.
	ReadTimeout Duration `toml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	WriteTimeout Duration `toml:"write_timeout"`
}

// IndexerConfig contains transaction index configuration.
type IndexerConfig struct {
	// Enabled determines whether delivered transactions are indexed.
	Enabled bool `toml:"enabled"`

	// Backend is the storage backend to use ("leveldb" or "badgerdb").
	Backend string `toml:"backend"`

	// Path is the directory path for the index.
	Path string `toml:"path"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// TracingConfig contains OpenTelemetry configuration.
type TracingConfig struct {
	// Enabled determines whether spans are exported.
	Enabled bool `toml:"enabled"`

	// Exporter is "stdout", "otlp-grpc", "otlp-http" or "none".
	Exporter string `toml:"exporter"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `toml:"endpoint"`

	// SampleRate is the fraction of operations traced (0.0 to 1.0).
	SampleRate float64 `toml:"sample_rate"`

	// Environment is the deployment environment reported with spans.
	Environment string `toml:"environment"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Ledger:          LedgerDevice,
			LoadConcurrency: 8,
		},
		ABCI: ABCIConfig{
			ListenAddr: "tcp://127.0.0.1:46658",
			Transport:  "socket",
		},
		StateStore: StateStoreConfig{
			Path:      "data/state",
			CacheSize: 10000,
		},
		Lookup: LookupConfig{
			Enabled:      true,
			ListenAddr:   ":3001",
			CacheSize:    1024,
			ReadTimeout:  Duration(5 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
		},
		Indexer: IndexerConfig{
			Enabled: true,
			Backend: "leveldb",
			Path:    "data/txindex",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "ledgerberry",
			ListenAddr: ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp-grpc",
			Endpoint:    "localhost:4317",
			SampleRate:  0.1,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrInvalidLedger          = errors.New("ledger must be 'device' or 'identity'")
	ErrInvalidLoadConcurrency = errors.New("load_concurrency must be positive")
	ErrEmptyABCIListenAddr    = errors.New("abci listen_addr cannot be empty")
	ErrInvalidABCITransport   = errors.New("abci transport must be 'socket' or 'grpc'")
	ErrEmptyStateStorePath    = errors.New("statestore path cannot be empty")
	ErrInvalidStateCacheSize  = errors.New("statestore cache_size must be non-negative")
	ErrEmptyLookupListenAddr  = errors.New("lookup listen_addr cannot be empty when enabled")
	ErrInvalidLookupCacheSize = errors.New("lookup cache_size must be positive when enabled")
	ErrInvalidLookupTimeout   = errors.New("lookup timeouts must be positive when enabled")
	ErrInvalidIndexerBackend  = errors.New("indexer backend must be 'leveldb' or 'badgerdb'")
	ErrEmptyIndexerPath       = errors.New("indexer path cannot be empty when enabled")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidTracingExporter = errors.New("tracing exporter must be one of: none, stdout, otlp-grpc, otlp-http")
	ErrInvalidTracingSampling = errors.New("tracing sample_rate must be between 0 and 1")
	ErrEmptyTracingEndpoint   = errors.New("tracing endpoint cannot be empty for otlp exporters")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app config: %w", err)
	}
	if err := c.ABCI.Validate(); err != nil {
		return fmt.Errorf("abci config: %w", err)
	}
	if err := c.StateStore.Validate(); err != nil {
		return fmt.Errorf("statestore config: %w", err)
	}
	if err := c.Lookup.Validate(); err != nil {
		return fmt.Errorf("lookup config: %w", err)
	}
	if err := c.Indexer.Validate(); err != nil {
		return fmt.Errorf("indexer config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the app configuration for errors.
func (c *AppConfig) Validate() error {
	if c.Ledger != LedgerDevice && c.Ledger != LedgerIdentity {
		return ErrInvalidLedger
	}
	if c.LoadConcurrency <= 0 {
		return ErrInvalidLoadConcurrency
	}
	return nil
}

// Validate checks the ABCI configuration for errors.
func (c *ABCIConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrEmptyABCIListenAddr
	}
	if c.Transport != "socket" && c.Transport != "grpc" {
		return ErrInvalidABCITransport
	}
	return nil
}

// Validate checks the state store configuration for errors.
func (c *StateStoreConfig) Validate() error {
	if c.Path == "" {
		return ErrEmptyStateStorePath
	}
	if c.CacheSize < 0 {
		return ErrInvalidStateCacheSize
	}
	return nil
}

// Validate checks the lookup configuration for errors.
func (c *LookupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ListenAddr == "" {
		return ErrEmptyLookupListenAddr
	}
	if c.CacheSize <= 0 {
		return ErrInvalidLookupCacheSize
	}
	if c.ReadTimeout.Duration() <= 0 || c.WriteTimeout.Duration() <= 0 {
		return ErrInvalidLookupTimeout
	}
	return nil
}

// Validate checks the indexer configuration for errors.
func (c *IndexerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Backend != "leveldb" && c.Backend != "badgerdb" {
		return ErrInvalidIndexerBackend
	}
	if c.Path == "" {
		return ErrEmptyIndexerPath
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the tracing configuration for errors.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "none", "stdout":
	case "otlp-grpc", "otlp-http":
		if c.Endpoint == "" {
			return ErrEmptyTracingEndpoint
		}
	default:
		return ErrInvalidTracingExporter
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return ErrInvalidTracingSampling
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directories specified in the configuration.
func (c *Config) EnsureDataDirs() error {
	dirs := []string{c.StateStore.Path}
	if c.Indexer.Enabled {
		dirs = append(dirs, c.Indexer.Path)
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// ResolvePaths makes relative data paths relative to home.
func (c *Config) ResolvePaths(home string) {
	for _, p := range []*string{&c.StateStore.Path, &c.Indexer.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(home, *p)
		}
	}
	if o := c.Logging.Output; o != "stdout" && o != "stderr" && !filepath.IsAbs(o) {
		c.Logging.Output = filepath.Join(home, o)
	}
}
