package state

import "github.com/blockberries/ledgerberry/codec"

// Update is an entity value produced by a transaction, keyed by the public
// key of the input that produced it.
type Update[F any] struct {
	Key    Key
	Entity codec.Entity[F]
}

// Execute computes the entities produced by a validated transaction. The
// result holds one update per input, in input order: the input's domain
// fields replace the stored ones and, on sequenced ledgers, the sequence is
// incremented by one. snap is not modified.
//
// Execute must only be called after Validator.DeliverTx accepted tx against
// the same snapshot.
func Execute[F any](tx *codec.Tx[F], snap Snapshot[F], sequenced bool) []Update[F] {
	updates := make([]Update[F], 0, len(tx.Inputs))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		k := KeyOf(in.PubKey)

		next := snap[k]
		next.PubKey = in.PubKey
		if sequenced {
			next.Sequence++
		}
		next.Fields = in.Fields

		updates = append(updates, Update[F]{Key: k, Entity: next})
	}
	return updates
}
