package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncTxs(phase, code string)                       {}
func (m *NopMetrics) ObserveTxDuration(phase string, d time.Duration) {}
func (m *NopMetrics) ObserveBatchLoad(keys int, d time.Duration)      {}
func (m *NopMetrics) IncOptions(result string)                        {}
func (m *NopMetrics) SetLedgerVersion(version int64)                  {}
func (m *NopMetrics) ObserveCommitDuration(d time.Duration)           {}
func (m *NopMetrics) IncQueries(result string)                        {}
func (m *NopMetrics) IncLookups(route string, status int)             {}

var _ Metrics = (*NopMetrics)(nil)
