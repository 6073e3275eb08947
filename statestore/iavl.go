package statestore

import (
	"fmt"
	"sync"

	"github.com/cosmos/iavl"
	idb "github.com/cosmos/iavl/db"
)

// IAVLStore implements StateStore using a cosmos/iavl merkle tree.
type IAVLStore struct {
	tree     *iavl.MutableTree
	db       idb.DB
	lastHash []byte
	mu       sync.RWMutex
}

// NewIAVLStore opens or creates a leveldb-backed IAVL store in dir and
// loads its latest version. cacheSize is the number of nodes cached in
// memory.
func NewIAVLStore(dir string, cacheSize int) (*IAVLStore, error) {
	db, err := idb.NewGoLevelDB("ledger", dir)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb for iavl: %w", err)
	}

	tree := iavl.NewMutableTree(db, cacheSize, false, iavl.NewNopLogger())
	version, err := tree.Load()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading iavl tree: %w", err)
	}

	s := &IAVLStore{tree: tree, db: db}
	if version > 0 {
		s.lastHash = tree.Hash()
	}
	return s, nil
}

// NewMemoryIAVLStore creates an in-memory IAVL store for testing.
func NewMemoryIAVLStore(cacheSize int) (*IAVLStore, error) {
	db := idb.NewMemDB()
	tree := iavl.NewMutableTree(db, cacheSize, false, iavl.NewNopLogger())

	return &IAVLStore{
		tree: tree,
		db:   db,
	}, nil
}

// Get retrieves the value for a key.
func (s *IAVLStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, err := s.tree.Get(key)
	if err != nil {
		return nil, fmt.Errorf("getting key: %w", err)
	}
	return value, nil
}

// Set stores a key-value pair in the working tree.
func (s *IAVLStore) Set(key []byte, value []byte) error {
	if key == nil {
		return ErrNilKey
	}
	if value == nil {
		return ErrNilValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.tree.Set(key, value); err != nil {
		return fmt.Errorf("setting key: %w", err)
	}
	return nil
}

// Commit saves the working tree as a new version.
func (s *IAVLStore) Commit() ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		return nil, 0, fmt.Errorf("saving version: %w", err)
	}
	s.lastHash = hash
	return hash, version, nil
}

// LastCommitHash returns the root hash of the latest committed version.
func (s *IAVLStore) LastCommitHash() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastHash
}

// Version returns the latest committed version number.
func (s *IAVLStore) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Version()
}

// committed returns the latest committed version of the tree, or nil if
// nothing has been committed. Callers hold s.mu.
func (s *IAVLStore) committed() (*iavl.ImmutableTree, error) {
	version := s.tree.Version()
	if version == 0 {
		return nil, nil
	}
	tree, err := s.tree.GetImmutable(version)
	if err != nil {
		return nil, fmt.Errorf("loading version %d: %w", version, err)
	}
	return tree, nil
}

// GetCommitted retrieves the value for a key as of the latest committed
// version.
func (s *IAVLStore) GetCommitted(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, err := s.committed()
	if err != nil || tree == nil {
		return nil, err
	}
	value, err := tree.Get(key)
	if err != nil {
		return nil, fmt.Errorf("getting committed key: %w", err)
	}
	return value, nil
}

// GetCommittedProof returns an ICS23 proof for key against the latest
// committed version.
func (s *IAVLStore) GetCommittedProof(key []byte) (*Proof, error) {
	if key == nil {
		return nil, ErrNilKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, err := s.committed()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, ErrNoCommittedVersion
	}

	value, err := tree.Get(key)
	if err != nil {
		return nil, fmt.Errorf("getting value for proof: %w", err)
	}
	proof, err := tree.GetProof(key)
	if err != nil {
		return nil, fmt.Errorf("getting proof: %w", err)
	}
	proofBytes, err := proof.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling proof: %w", err)
	}

	return &Proof{
		Key:        key,
		Value:      value,
		Exists:     value != nil,
		RootHash:   tree.Hash(),
		Version:    tree.Version(),
		ProofBytes: proofBytes,
	}, nil
}

// Close closes the store and releases resources.
func (s *IAVLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}
