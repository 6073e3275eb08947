// Package ledger adapts the merkle state store to typed ledger entities.
//
// Entities are stored under their 32-byte public key. Reads observe the
// working tree, so entities written by earlier transactions in the same
// block are visible before the block is committed.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/state"
	"github.com/blockberries/ledgerberry/statestore"
)

// DefaultLoadConcurrency bounds the number of concurrent lookups in a batch
// load.
const DefaultLoadConcurrency = 8

// ErrCorruptEntity is returned when a stored value cannot be decoded.
var ErrCorruptEntity = errors.New("corrupt stored entity")

// Store reads and writes entities of one schema.
type Store[F any] struct {
	kv          statestore.StateStore
	fc          codec.FieldCodec[F]
	concurrency int
}

// NewStore wraps kv for entities encoded with fc.
func NewStore[F any](kv statestore.StateStore, fc codec.FieldCodec[F]) *Store[F] {
	return &Store[F]{kv: kv, fc: fc, concurrency: DefaultLoadConcurrency}
}

// WithConcurrency sets the batch load concurrency. Values below 1 are
// treated as 1.
func (s *Store[F]) WithConcurrency(n int) *Store[F] {
	s.concurrency = max(n, 1)
	return s
}

// GetRaw returns the stored encoding for key, or nil if absent.
func (s *Store[F]) GetRaw(key []byte) ([]byte, error) {
	value, err := s.kv.Get(key)
	if err != nil {
		return nil, fmt.Errorf("reading entity: %w", err)
	}
	return value, nil
}

// Get returns the entity for key. The boolean is false if no entity is
// stored under key.
func (s *Store[F]) Get(key []byte) (*codec.Entity[F], bool, error) {
	raw, err := s.GetRaw(key)
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	e, err := s.Decode(raw)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Decode decodes a stored entity value.
func (s *Store[F]) Decode(raw []byte) (*codec.Entity[F], error) {
	e, err := codec.DecodeEntity(raw, s.fc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntity, err)
	}
	return e, nil
}

// LoadBatch loads the entities for keys. Lookups run concurrently, but the
// batch completes as a unit: any read failure or undecodable value fails
// the whole batch and no partial snapshot is returned. Absent keys are
// simply missing from the snapshot. Keys must be keys.PubKeySize bytes.
func (s *Store[F]) LoadBatch(ctx context.Context, pubKeys [][]byte) (state.Snapshot[F], error) {
	type result struct {
		entity *codec.Entity[F]
		found  bool
	}
	results := make([]result, len(pubKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range pubKeys {
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, found, err := s.Get(key)
			if err != nil {
				return err
			}
			results[i] = result{entity: e, found: found}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}

	snap := make(state.Snapshot[F], len(pubKeys))
	for i, r := range results {
		if r.found {
			snap[state.KeyOf(pubKeys[i])] = *r.entity
		}
	}
	return snap, nil
}

// Put writes entities to the working tree in slice order.
func (s *Store[F]) Put(updates []state.Update[F]) error {
	for i := range updates {
		u := &updates[i]
		e := u.Entity
		e.PubKey = u.Key[:]
		if err := s.kv.Set(u.Key[:], codec.EncodeEntity(&e, s.fc)); err != nil {
			return fmt.Errorf("writing entity: %w", err)
		}
	}
	return nil
}

// Commit persists the working tree and returns its root hash and version.
func (s *Store[F]) Commit() ([]byte, int64, error) {
	return s.kv.Commit()
}

// Version returns the last committed version.
func (s *Store[F]) Version() int64 {
	return s.kv.Version()
}

// LastHash returns the root hash of the last committed version.
func (s *Store[F]) LastHash() []byte {
	return s.kv.LastCommitHash()
}

// GetCommittedRaw returns the encoding stored for key as of the last commit,
// or nil if absent then.
func (s *Store[F]) GetCommittedRaw(key []byte) ([]byte, error) {
	value, err := s.kv.GetCommitted(key)
	if err != nil {
		return nil, fmt.Errorf("reading committed entity: %w", err)
	}
	return value, nil
}

// Proof returns a merkle proof for key against the last committed version.
func (s *Store[F]) Proof(key []byte) (*statestore.Proof, error) {
	return s.kv.GetCommittedProof(key)
}
