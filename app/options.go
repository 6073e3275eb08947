package app

import (
	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/metrics"
	"github.com/blockberries/ledgerberry/tracing/otel"
)

type settings struct {
	logger  *logging.Logger
	metrics metrics.Metrics
	tracer  *otel.Tracer
	indexer indexer.TxIndexer
}

func defaultSettings() settings {
	return settings{
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
		tracer:  otel.NopTracer(),
		indexer: indexer.NopIndexer{},
	}
}

// Option configures an App.
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

// WithTracer sets the tracer.
func WithTracer(t *otel.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithIndexer records every delivered transaction in idx.
func WithIndexer(idx indexer.TxIndexer) Option {
	return func(s *settings) {
		if idx != nil {
			s.indexer = idx
		}
	}
}
