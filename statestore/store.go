// Package statestore provides the versioned merkle key-value store that
// holds the ledger.
package statestore

import (
	"bytes"
	"errors"
	"fmt"

	ics23 "github.com/cosmos/ics23/go"
)

// Store errors.
var (
	ErrNilKey       = errors.New("key cannot be nil")
	ErrNilValue     = errors.New("value cannot be nil")
	ErrInvalidProof = errors.New("invalid proof")

	ErrNoCommittedVersion = errors.New("no committed version")
)

// StateStore defines the interface for merkleized key-value state storage.
// Writes go to a working tree; reads of the committed state go through the
// GetCommitted methods. Implementations must be safe for concurrent use.
type StateStore interface {
	// Get retrieves the value for a key from the working tree.
	// Returns nil, nil if the key does not exist.
	Get(key []byte) ([]byte, error)

	// Set stores a key-value pair in the working tree.
	// The change is not persisted until Commit is called.
	Set(key []byte, value []byte) error

	// Commit saves the working tree as a new version.
	// Returns the root hash and version number.
	Commit() (hash []byte, version int64, err error)

	// LastCommitHash returns the root hash of the latest committed version.
	LastCommitHash() []byte

	// Version returns the latest committed version number.
	// Returns 0 if no versions have been committed.
	Version() int64

	// GetCommitted retrieves the value for a key as of the latest committed
	// version. Returns nil, nil if the key does not exist or nothing has been
	// committed.
	GetCommitted(key []byte) ([]byte, error)

	// GetCommittedProof returns a merkle proof of existence or absence of a
	// key in the latest committed version. It returns ErrNoCommittedVersion
	// before the first Commit.
	GetCommittedProof(key []byte) (*Proof, error)

	// Close closes the store and releases resources.
	Close() error
}

// Proof is a merkle proof for a key in the state store.
type Proof struct {
	Key    []byte
	Value  []byte
	Exists bool

	// RootHash and Version identify the tree the proof was taken from.
	RootHash []byte
	Version  int64

	// ProofBytes contains the serialized ICS23 commitment proof.
	ProofBytes []byte
}

// Verify checks the proof against rootHash.
func (p *Proof) Verify(rootHash []byte) (bool, error) {
	if p == nil || len(p.ProofBytes) == 0 {
		return false, ErrInvalidProof
	}
	if len(rootHash) == 0 {
		return false, fmt.Errorf("%w: empty root hash", ErrInvalidProof)
	}

	var cp ics23.CommitmentProof
	if err := cp.Unmarshal(p.ProofBytes); err != nil {
		return false, fmt.Errorf("%w: unmarshaling: %v", ErrInvalidProof, err)
	}

	if p.Exists {
		return p.verifyExistence(cp.GetExist(), rootHash)
	}
	return p.verifyAbsence(cp.GetNonexist(), rootHash)
}

func (p *Proof) verifyExistence(ep *ics23.ExistenceProof, rootHash []byte) (bool, error) {
	if ep == nil {
		return false, fmt.Errorf("%w: not an existence proof", ErrInvalidProof)
	}
	if !bytes.Equal(ep.Key, p.Key) || !bytes.Equal(ep.Value, p.Value) {
		return false, nil
	}
	return calculatesTo(ep, rootHash)
}

func (p *Proof) verifyAbsence(np *ics23.NonExistenceProof, rootHash []byte) (bool, error) {
	if np == nil {
		return false, fmt.Errorf("%w: not a non-existence proof", ErrInvalidProof)
	}
	if !bytes.Equal(np.Key, p.Key) {
		return false, nil
	}
	if np.Left == nil && np.Right == nil {
		return false, fmt.Errorf("%w: no neighbor proofs", ErrInvalidProof)
	}
	for _, neighbor := range []*ics23.ExistenceProof{np.Left, np.Right} {
		if neighbor == nil {
			continue
		}
		if ok, err := calculatesTo(neighbor, rootHash); !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

func calculatesTo(ep *ics23.ExistenceProof, rootHash []byte) (bool, error) {
	root, err := ep.Calculate()
	if err != nil {
		return false, fmt.Errorf("%w: calculating root: %v", ErrInvalidProof, err)
	}
	return bytes.Equal(root, rootHash), nil
}
