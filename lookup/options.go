package lookup

import (
	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/metrics"
)

type settings struct {
	logger  *logging.Logger
	metrics metrics.Metrics
	indexer indexer.TxIndexer
}

func defaultSettings() settings {
	return settings{
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
		indexer: indexer.NopIndexer{},
	}
}

// Option configures a Server.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithIndexer serves transaction lookups from idx.
func WithIndexer(idx indexer.TxIndexer) Option {
	return func(s *settings) {
		if idx != nil {
			s.indexer = idx
		}
	}
}
