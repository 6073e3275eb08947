package kv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/blockberries/ledgerberry/indexer"
)

// LevelDBIndexer implements indexer.TxIndexer using LevelDB.
type LevelDBIndexer struct {
	db     *leveldb.DB
	closed bool
	mu     sync.RWMutex
}

// NewLevelDBIndexer opens or creates a LevelDB index in path.
func NewLevelDBIndexer(path string) (*LevelDBIndexer, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	return &LevelDBIndexer{db: db}, nil
}

// Index stores a record.
func (idx *LevelDBIndexer) Index(rec *indexer.TxRecord) error {
	if rec == nil || len(rec.Hash) == 0 {
		return nil
	}

	kvs, err := entries(rec)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return indexer.ErrClosed
	}

	batch := new(leveldb.Batch)
	for k, v := range kvs {
		batch.Put([]byte(k), v)
	}
	return idx.db.Write(batch, nil)
}

// Get retrieves a record by transaction hash.
func (idx *LevelDBIndexer) Get(hash []byte) (*indexer.TxRecord, error) {
	if len(hash) == 0 {
		return nil, indexer.ErrTxNotFound
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, indexer.ErrClosed
	}
	return idx.getUnlocked(hash)
}

func (idx *LevelDBIndexer) getUnlocked(hash []byte) (*indexer.TxRecord, error) {
	data, err := idx.db.Get(txHashKey(hash), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, indexer.ErrTxNotFound
		}
		return nil, fmt.Errorf("getting tx: %w", err)
	}
	return decodeRecord(data)
}

// ByPubKey returns records signed by pubKey in height order.
func (idx *LevelDBIndexer) ByPubKey(pubKey []byte, limit int) ([]*indexer.TxRecord, error) {
	limit = limitOrDefault(limit)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, indexer.ErrClosed
	}

	it := idx.db.NewIterator(util.BytesPrefix(signerPrefix(pubKey)), nil)
	defer it.Release()

	var out []*indexer.TxRecord
	for it.Next() && len(out) < limit {
		rec, err := idx.getUnlocked(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterating signer index: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (idx *LevelDBIndexer) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.db.Close()
}

var _ indexer.TxIndexer = (*LevelDBIndexer)(nil)
