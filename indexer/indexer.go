// Package indexer records the outcome of delivered transactions so clients
// can look them up by hash or by signer after the fact.
//
// The index sits beside the consensus path: it is written after DeliverTx has
// decided a result and never influences one.
package indexer

import (
	"errors"

	"github.com/blockberries/ledgerberry/abi"
)

// Indexer errors.
var (
	ErrTxNotFound = errors.New("transaction not found")
	ErrClosed     = errors.New("indexer closed")
)

// DefaultLimit caps the number of records returned by ByPubKey.
const DefaultLimit = 100

// TxRecord is the indexed outcome of one delivered transaction.
type TxRecord struct {
	Hash []byte `json:"hash"`

	// Height is the ledger version the transaction's block commits as.
	Height int64 `json:"height"`

	Code abi.ResultCode `json:"code"`
	Log  string         `json:"log,omitempty"`

	// PubKeys lists the signers of the transaction, in input order.
	PubKeys [][]byte `json:"pub_keys,omitempty"`
}

// TxIndexer stores and retrieves transaction records.
// Implementations must be safe for concurrent use.
type TxIndexer interface {
	// Index stores a record. Indexing the same hash twice overwrites it.
	Index(rec *TxRecord) error

	// Get returns the record for hash, or ErrTxNotFound.
	Get(hash []byte) (*TxRecord, error)

	// ByPubKey returns up to limit records signed by pubKey, oldest first.
	// limit <= 0 means DefaultLimit.
	ByPubKey(pubKey []byte, limit int) ([]*TxRecord, error)

	// Close releases resources.
	Close() error
}

// NopIndexer discards records.
type NopIndexer struct{}

func (NopIndexer) Index(*TxRecord) error { return nil }

func (NopIndexer) Get([]byte) (*TxRecord, error) { return nil, ErrTxNotFound }

func (NopIndexer) ByPubKey([]byte, int) ([]*TxRecord, error) { return nil, nil }

func (NopIndexer) Close() error { return nil }

var _ TxIndexer = NopIndexer{}
