// Package state holds the pure transaction rules of the ledger: the
// validator that decides whether a transaction may be applied, and the
// executor that computes the entities it produces.
//
// Nothing in this package performs I/O. Entity lookups arrive as a Snapshot
// loaded by the caller.
package state

import (
	"fmt"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/keys"
)

// Schema describes one ledger variant to the validator and executor.
type Schema[F any] interface {
	codec.FieldCodec[F]

	// EntityName is the singular noun for ledger entities ("device").
	EntityName() string

	// ValidateFields returns the first out-of-domain field, if any. The
	// error message is reported to clients verbatim.
	ValidateFields(f F) error
}

// Key is the fixed-size form of an entity public key.
type Key [keys.PubKeySize]byte

// KeyOf converts a public key to a Key. Callers must pass a key of
// keys.PubKeySize bytes.
func KeyOf(pub []byte) Key {
	var k Key
	copy(k[:], pub)
	return k
}

// Snapshot maps public keys to the entities loaded for one transaction.
// Keys absent from the map do not exist in the ledger.
type Snapshot[F any] map[Key]codec.Entity[F]

// Violation is a rule failure, reported to clients as a result code.
type Violation struct {
	Code abi.ResultCode
	Log  string
}

// Error implements error.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Log)
}

// Result converts the violation to a transaction result.
func (v *Violation) Result() *abi.TxResult {
	return abi.Reject(v.Code, v.Log)
}

func violation(code abi.ResultCode, log string) *Violation {
	return &Violation{Code: code, Log: log}
}
