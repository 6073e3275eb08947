// Package metrics exposes ledger metrics.
package metrics

import "time"

// Transaction phases.
const (
	PhaseCheck   = "check"
	PhaseDeliver = "deliver"
)

// Metrics collects ledger metrics. All methods must be safe for concurrent
// use and non-blocking.
type Metrics interface {
	// Transaction metrics
	IncTxs(phase, code string)
	ObserveTxDuration(phase string, d time.Duration)
	ObserveBatchLoad(keys int, d time.Duration)

	// Bootstrap option metrics
	IncOptions(result string)

	// Ledger metrics
	SetLedgerVersion(version int64)
	ObserveCommitDuration(d time.Duration)
	IncQueries(result string)

	// Lookup API metrics
	IncLookups(route string, status int)
}
