package abi

import "context"

// Application is the contract between the consensus runtime and the ledger.
//
// The runtime drives the application through a fixed sequence: SetOption
// calls for bootstrap configuration, then for every block zero or more
// DeliverTx calls followed by exactly one Commit. CheckTx and Query may
// arrive at any point between those calls.
//
// Result codes describe rejected transactions. Returned errors describe
// faults in the ledger store itself and are fatal to the call.
type Application interface {
	// Info returns static application metadata and the last committed state.
	Info(ctx context.Context) *InfoResult

	// SetOption applies a bootstrap configuration entry. Unrecognized keys
	// and malformed values are ignored.
	SetOption(ctx context.Context, key, value string) *SetOptionResult

	// CheckTx runs the stateless pre-check pass over raw transaction bytes.
	// It never reads or writes ledger state.
	CheckTx(ctx context.Context, tx []byte) *TxResult

	// DeliverTx validates a transaction against the working state and
	// applies it. On any non-OK code no state is written.
	DeliverTx(ctx context.Context, tx []byte) (*TxResult, error)

	// Commit persists the working state and returns its root hash.
	Commit(ctx context.Context) (*CommitResult, error)

	// Query reads a single ledger entry.
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
}

// InfoResult describes the application to the consensus runtime.
type InfoResult struct {
	// Data is a human-readable application description.
	Data string

	// Version is the application version string.
	Version string

	// LastVersion is the last committed state version (block height).
	LastVersion int64

	// LastHash is the root hash of the last committed state.
	LastHash []byte
}

// SetOptionResult is returned from Application.SetOption.
type SetOptionResult struct {
	Code ResultCode
	Log  string
}

// CommitResult is returned from Application.Commit.
type CommitResult struct {
	// AppHash is the root hash of the committed state.
	AppHash []byte

	// Version is the committed state version.
	Version int64
}
