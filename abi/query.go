package abi

// QueryRequest represents a request to read ledger state.
type QueryRequest struct {
	// Path is the query path. The ledger serves a single key space and
	// ignores it.
	Path string

	// Data is the entity public key.
	Data []byte

	// Prove requests a merkle proof be included in the response.
	Prove bool
}

// QueryResponse represents the response from a state query.
type QueryResponse struct {
	// Code is always CodeOK: a missing entity is reported through Log.
	Code ResultCode

	// Log describes why no value was returned.
	Log string

	// Key is the key that was queried.
	Key []byte

	// Value is the stored encoded entity, empty when absent.
	Value []byte

	// Proof is the merkle proof, if requested.
	Proof *Proof

	// Height is the last committed version at the time of the query.
	Height int64
}

// IsOK returns true if the query succeeded.
func (r *QueryResponse) IsOK() bool {
	return r != nil && r.Code.IsOK()
}

// Exists returns true if the key exists.
func (r *QueryResponse) Exists() bool {
	return r.IsOK() && len(r.Value) > 0
}

// Proof represents a merkle proof for verifying state.
type Proof struct {
	// Ops are the proof operations that can be verified.
	Ops []ProofOp
}

// ProofOp represents a single operation in a merkle proof.
type ProofOp struct {
	// Type identifies the proof operation type (e.g. "ics23:iavl").
	Type string

	// Key is the key this operation applies to.
	Key []byte

	// Data contains the serialized proof.
	Data []byte
}
