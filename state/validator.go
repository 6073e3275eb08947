package state

import (
	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/keys"
)

// Rejection messages.
const (
	LogNoInputs       = "Tx.inputs.length cannot be 0"
	LogBadPubKey      = "Input pubKey must be 32 bytes long"
	LogBadSignature   = "Input signature must be 64 bytes long"
	LogInvalidSig     = "Invalid signature"
	LogDuplicateInput = "Duplicate input pubKey"
	LogBadSequence    = "Invalid sequence"
)

// Validator applies the transaction rules of one schema.
type Validator[F any] struct {
	schema Schema[F]
}

// NewValidator creates a validator for schema.
func NewValidator[F any](schema Schema[F]) *Validator[F] {
	return &Validator[F]{schema: schema}
}

// CheckTx runs the stateless pre-check pass and returns the first violation
// found, or nil. Inputs are checked in order; each input is checked for
// field domain, key length, signature length, signature validity and
// uniqueness of its public key, in that order.
func (v *Validator[F]) CheckTx(tx *codec.Tx[F]) *Violation {
	if len(tx.Inputs) == 0 {
		return violation(abi.CodeEncodingError, LogNoInputs)
	}

	signBytes := codec.SignBytes(tx, v.schema)
	seen := make(map[Key]struct{}, len(tx.Inputs))

	for i := range tx.Inputs {
		in := &tx.Inputs[i]

		if err := v.schema.ValidateFields(in.Fields); err != nil {
			return violation(abi.CodeEncodingError, err.Error())
		}
		if len(in.PubKey) != keys.PubKeySize {
			return violation(abi.CodeEncodingError, LogBadPubKey)
		}
		if len(in.Signature) != keys.SignatureSize {
			return violation(abi.CodeEncodingError, LogBadSignature)
		}
		if !keys.Verify(in.PubKey, signBytes, in.Signature) {
			return violation(abi.CodeUnauthorized, LogInvalidSig)
		}

		k := KeyOf(in.PubKey)
		if _, dup := seen[k]; dup {
			return violation(abi.CodeEncodingError, LogDuplicateInput)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// DeliverTx runs the apply pass: every CheckTx rule, then CheckState.
func (v *Validator[F]) DeliverTx(tx *codec.Tx[F], snap Snapshot[F]) *Violation {
	if viol := v.CheckTx(tx); viol != nil {
		return viol
	}
	return v.CheckState(tx, snap)
}

// CheckState runs the state-dependent rules of the apply pass over a
// transaction that already passed CheckTx: for each input in order, its
// entity must exist in snap and, on sequenced ledgers, the input sequence
// must equal the entity sequence.
func (v *Validator[F]) CheckState(tx *codec.Tx[F], snap Snapshot[F]) *Violation {
	for i := range tx.Inputs {
		in := &tx.Inputs[i]

		entity, ok := snap[KeyOf(in.PubKey)]
		if !ok {
			return violation(abi.CodeUnknownAccount, "Input "+v.schema.EntityName()+" does not exist")
		}
		if v.schema.Sequenced() && entity.Sequence != in.Sequence {
			return violation(abi.CodeBadNonce, LogBadSequence)
		}
	}
	return nil
}
