package kv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/blockberries/ledgerberry/indexer"
)

// BadgerOptions contains configuration options for the BadgerDB indexer.
type BadgerOptions struct {
	// SyncWrites syncs every write to disk.
	SyncWrites bool

	// Compression enables Snappy compression for values.
	Compression bool

	// InMemory keeps the index in memory only. Path is ignored.
	InMemory bool
}

// DefaultBadgerOptions returns the default options. The index can be rebuilt
// by replaying blocks, so writes are not synced.
func DefaultBadgerOptions() *BadgerOptions {
	return &BadgerOptions{
		SyncWrites:  false,
		Compression: true,
	}
}

// BadgerIndexer implements indexer.TxIndexer using BadgerDB.
type BadgerIndexer struct {
	db     *badger.DB
	closed bool
	mu     sync.RWMutex
}

// NewBadgerIndexer opens or creates a BadgerDB index in path.
func NewBadgerIndexer(path string, opts *BadgerOptions) (*BadgerIndexer, error) {
	if opts == nil {
		opts = DefaultBadgerOptions()
	}

	badgerOpts := badger.DefaultOptions(path)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)
	if opts.Compression {
		badgerOpts = badgerOpts.WithCompression(options.Snappy)
	} else {
		badgerOpts = badgerOpts.WithCompression(options.None)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}
	return &BadgerIndexer{db: db}, nil
}

// Index stores a record.
func (idx *BadgerIndexer) Index(rec *indexer.TxRecord) error {
	if rec == nil || len(rec.Hash) == 0 {
		return nil
	}

	kvs, err := entries(rec)
	if err != nil {
		return err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return indexer.ErrClosed
	}

	return idx.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a record by transaction hash.
func (idx *BadgerIndexer) Get(hash []byte) (*indexer.TxRecord, error) {
	if len(hash) == 0 {
		return nil, indexer.ErrTxNotFound
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, indexer.ErrClosed
	}

	var rec *indexer.TxRecord
	err := idx.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, hash)
		return err
	})
	return rec, err
}

func getRecord(txn *badger.Txn, hash []byte) (*indexer.TxRecord, error) {
	item, err := txn.Get(txHashKey(hash))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, indexer.ErrTxNotFound
		}
		return nil, fmt.Errorf("getting tx: %w", err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("reading tx: %w", err)
	}
	return decodeRecord(data)
}

// ByPubKey returns records signed by pubKey in height order.
func (idx *BadgerIndexer) ByPubKey(pubKey []byte, limit int) ([]*indexer.TxRecord, error) {
	limit = limitOrDefault(limit)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, indexer.ErrClosed
	}

	prefix := signerPrefix(pubKey)
	var out []*indexer.TxRecord
	err := idx.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			hash, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading signer index: %w", err)
			}
			rec, err := getRecord(txn, hash)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the database.
func (idx *BadgerIndexer) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.db.Close()
}

var _ indexer.TxIndexer = (*BadgerIndexer)(nil)
