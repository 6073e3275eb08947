package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/indexer"
)

func createTestIndexers(t *testing.T) map[string]indexer.TxIndexer {
	t.Helper()

	ldb, err := NewLevelDBIndexer(filepath.Join(t.TempDir(), "leveldb"))
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	bdb, err := NewBadgerIndexer("", &BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	return map[string]indexer.TxIndexer{"leveldb": ldb, "badger": bdb}
}

func record(hash string, height int64, code abi.ResultCode, signers ...string) *indexer.TxRecord {
	rec := &indexer.TxRecord{Hash: []byte(hash), Height: height, Code: code}
	for _, s := range signers {
		rec.PubKeys = append(rec.PubKeys, []byte(s))
	}
	return rec
}

func TestIndexAndGet(t *testing.T) {
	for name, idx := range createTestIndexers(t) {
		t.Run(name, func(t *testing.T) {
			rec := record("hash1", 3, abi.CodeBadNonce, "alice")
			rec.Log = "Invalid sequence"
			require.NoError(t, idx.Index(rec))

			got, err := idx.Get([]byte("hash1"))
			require.NoError(t, err)
			require.Equal(t, rec, got)

			_, err = idx.Get([]byte("missing"))
			require.ErrorIs(t, err, indexer.ErrTxNotFound)

			_, err = idx.Get(nil)
			require.ErrorIs(t, err, indexer.ErrTxNotFound)

			require.NoError(t, idx.Index(nil))
		})
	}
}

func TestByPubKey(t *testing.T) {
	for name, idx := range createTestIndexers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(record("h3", 3, abi.CodeOK, "alice")))
			require.NoError(t, idx.Index(record("h1", 1, abi.CodeOK, "alice", "bob")))
			require.NoError(t, idx.Index(record("h2", 2, abi.CodeOK, "bob")))
			require.NoError(t, idx.Index(record("h4", 4, abi.CodeOK, "alicia")))

			recs, err := idx.ByPubKey([]byte("alice"), 0)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			require.Equal(t, []byte("h1"), recs[0].Hash)
			require.Equal(t, []byte("h3"), recs[1].Hash)

			recs, err = idx.ByPubKey([]byte("bob"), 1)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			require.Equal(t, []byte("h1"), recs[0].Hash)

			recs, err = idx.ByPubKey([]byte("carol"), 10)
			require.NoError(t, err)
			require.Empty(t, recs)
		})
	}
}

func TestClosed(t *testing.T) {
	for name, idx := range createTestIndexers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Close())
			require.NoError(t, idx.Close())

			require.ErrorIs(t, idx.Index(record("h", 1, abi.CodeOK)), indexer.ErrClosed)
			_, err := idx.Get([]byte("h"))
			require.ErrorIs(t, err, indexer.ErrClosed)
			_, err = idx.ByPubKey([]byte("a"), 1)
			require.ErrorIs(t, err, indexer.ErrClosed)
		})
	}
}

func TestLevelDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx, err := NewLevelDBIndexer(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(record("h1", 1, abi.CodeOK, "alice")))
	require.NoError(t, idx.Close())

	idx, err = NewLevelDBIndexer(path)
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.Get([]byte("h1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Height)
}
