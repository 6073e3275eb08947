package abi

import "fmt"

// ResultCode is the outcome of processing a transaction.
// Code 0 indicates success. The set of codes is closed: every rejection the
// ledger produces maps to exactly one of the codes below.
//
// Numbering follows the early Tendermint code table so that clients written
// against it read the same values. 5 (insufficient funds) and 6 (unknown
// request) are never produced; 1 (internal error) only answers a query the
// store failed to serve.
type ResultCode uint32

const (
	// CodeOK indicates the operation succeeded.
	CodeOK ResultCode = 0

	// CodeEncodingError indicates malformed bytes or a structurally invalid
	// transaction: no inputs, out-of-domain fields, wrong key or signature
	// length, or a duplicate signer.
	CodeEncodingError ResultCode = 2

	// CodeBadNonce indicates an input sequence that does not equal the
	// stored entity sequence.
	CodeBadNonce ResultCode = 3

	// CodeUnauthorized indicates a signature that does not verify.
	CodeUnauthorized ResultCode = 4

	// CodeUnknownAccount indicates an input whose entity is not in the ledger.
	CodeUnknownAccount ResultCode = 7
)

// IsOK returns true if the code indicates success.
func (c ResultCode) IsOK() bool {
	return c == CodeOK
}

// IsError returns true if the code indicates an error.
func (c ResultCode) IsError() bool {
	return c != CodeOK
}

// String returns a human-readable description of the code.
func (c ResultCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeEncodingError:
		return "EncodingError"
	case CodeBadNonce:
		return "BadNonce"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeUnknownAccount:
		return "UnknownAccount"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}
