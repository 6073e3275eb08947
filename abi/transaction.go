package abi

import "crypto/sha256"

// TxHash returns the SHA-256 hash of raw transaction bytes.
func TxHash(tx []byte) []byte {
	h := sha256.Sum256(tx)
	return h[:]
}

// TxResult is returned from Application.CheckTx and Application.DeliverTx.
type TxResult struct {
	// Code indicates success (0) or the reason the transaction was rejected.
	Code ResultCode

	// Log is a human-readable reason for a non-OK code.
	Log string

	// Hash is the SHA-256 hash of the transaction bytes.
	Hash []byte
}

// IsOK returns true if the transaction was accepted.
func (r *TxResult) IsOK() bool {
	return r != nil && r.Code.IsOK()
}

// Reject builds a failed result.
func Reject(code ResultCode, log string) *TxResult {
	return &TxResult{Code: code, Log: log}
}
