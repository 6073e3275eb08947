// Package kv provides LevelDB and BadgerDB transaction indexers.
package kv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/blockberries/ledgerberry/indexer"
)

// Key prefixes for the two index types.
var (
	// Primary index: hash -> TxRecord
	prefixTxByHash = []byte("th/")

	// Signer index: pubkey/height/hash -> hash
	prefixTxBySigner = []byte("pk/")
)

func txHashKey(hash []byte) []byte {
	return append(append([]byte{}, prefixTxByHash...), hash...)
}

func signerPrefix(pubKey []byte) []byte {
	key := append(append([]byte{}, prefixTxBySigner...), pubKey...)
	return append(key, '/')
}

func signerKey(pubKey []byte, height int64, hash []byte) []byte {
	key := signerPrefix(pubKey)
	key = binary.BigEndian.AppendUint64(key, uint64(height))
	return append(key, hash...)
}

// entries returns the key-value pairs that index rec.
func entries(rec *indexer.TxRecord) (map[string][]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}

	out := map[string][]byte{string(txHashKey(rec.Hash)): data}
	for _, pk := range rec.PubKeys {
		out[string(signerKey(pk, rec.Height, rec.Hash))] = rec.Hash
	}
	return out, nil
}

func decodeRecord(data []byte) (*indexer.TxRecord, error) {
	var rec indexer.TxRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	return &rec, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return indexer.DefaultLimit
	}
	return limit
}
