// Package txbuilder assembles and signs ledger transactions for clients,
// the test driver and tests.
package txbuilder

import (
	"fmt"

	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/keys"
)

// Signer is one input to be signed by Key.
type Signer[F any] struct {
	Key      *keys.KeyPair
	Sequence uint64
	Fields   F
}

// FromSeed derives the key for seed and returns a signer for it.
func FromSeed[F any](seed string, sequence uint64, fields F) (Signer[F], error) {
	kp, err := keys.DeriveKeyPair(seed)
	if err != nil {
		return Signer[F]{}, fmt.Errorf("deriving key for %q: %w", seed, err)
	}
	return Signer[F]{Key: kp, Sequence: sequence, Fields: fields}, nil
}

// Build returns a transaction with one input per signer, in order, each
// signed over the transaction sign bytes.
func Build[F any](fc codec.FieldCodec[F], signers ...Signer[F]) *codec.Tx[F] {
	tx := &codec.Tx[F]{Inputs: make([]codec.Input[F], len(signers))}
	for i, s := range signers {
		tx.Inputs[i] = codec.Input[F]{
			PubKey:   s.Key.PubKey,
			Sequence: s.Sequence,
			Fields:   s.Fields,
		}
	}

	signBytes := codec.SignBytes(tx, fc)
	for i, s := range signers {
		tx.Inputs[i].Signature = keys.Sign(s.Key.PrivKey, signBytes)
	}
	return tx
}

// Encode builds and encodes a signed transaction.
func Encode[F any](fc codec.FieldCodec[F], signers ...Signer[F]) []byte {
	return codec.Encode(Build(fc, signers...), fc)
}
