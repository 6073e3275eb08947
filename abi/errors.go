package abi

import "errors"

// Common errors used by ABI interfaces.
var (
	// ErrStoreFailure wraps ledger store I/O failures. These are not result
	// codes: the call that hit one must fail.
	ErrStoreFailure = errors.New("ledger store failure")

	// ErrCommitFailed indicates the working state could not be persisted.
	// The process cannot continue past a failed commit.
	ErrCommitFailed = errors.New("commit failed")
)
