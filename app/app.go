// Package app is the ledger lifecycle controller. It implements
// abi.Application once, generically over a ledger schema, and is
// instantiated with the device or identity schema.
//
// The consensus runtime serializes DeliverTx and Commit; App relies on that
// and holds no lock of its own. CheckTx and Query may run concurrently with
// them since they only read.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/keys"
	"github.com/blockberries/ledgerberry/ledger"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/metrics"
	"github.com/blockberries/ledgerberry/state"
	"github.com/blockberries/ledgerberry/tracing/otel"
)

// Version is the application version reported by Info.
const Version = "0.0.1"

// ProofOpIAVL is the proof operation type of query proofs.
const ProofOpIAVL = "ics23:iavl"

// Query logs.
const (
	LogExists     = "exists"
	LogNotExists  = "does not exist"
	LogMissingKey = "query key is empty"
)

// ErrEntityExists rejects a bootstrap option for an entity already in the
// ledger.
var ErrEntityExists = errors.New("already exists")

// Option results, as counted by metrics.
const (
	optionApplied  = "applied"
	optionRejected = "rejected"
	optionIgnored  = "ignored"
)

// Schema is a ledger variant: the transaction rules plus what the
// controller needs to name, bootstrap and describe its entities.
type Schema[F any] interface {
	state.Schema[F]

	// Name is the ledger name used in configuration.
	Name() string

	// Info is the application description reported by Info.
	Info() string

	// OptionKey is the SetOption key that bootstraps an entity.
	OptionKey() string

	// Route is the plural path segment entities are served under.
	Route() string

	// Describe renders a bootstrapped entity for the option log.
	Describe(seed string, f F) string
}

// App implements abi.Application for one ledger schema.
type App[F any] struct {
	schema    Schema[F]
	validator *state.Validator[F]
	store     *ledger.Store[F]

	logger  *logging.Logger
	metrics metrics.Metrics
	tracer  *otel.Tracer
	indexer indexer.TxIndexer
}

// New creates an application over store.
func New[F any](schema Schema[F], store *ledger.Store[F], opts ...Option) *App[F] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	return &App[F]{
		schema:    schema,
		validator: state.NewValidator[F](schema),
		store:     store,
		logger:    s.logger.WithComponent("app").WithLedger(schema.Name()),
		metrics:   s.metrics,
		tracer:    s.tracer,
		indexer:   s.indexer,
	}
}

// Schema returns the ledger schema.
func (a *App[F]) Schema() Schema[F] {
	return a.schema
}

// Info returns the application description and the last committed state.
func (a *App[F]) Info(ctx context.Context) *abi.InfoResult {
	_, span := a.tracer.StartSpan(ctx, "Info")
	defer span.End()

	return &abi.InfoResult{
		Data:        a.schema.Info() + " v" + Version,
		Version:     Version,
		LastVersion: a.store.Version(),
		LastHash:    a.store.LastHash(),
	}
}

// SetOption bootstraps an entity when key is the schema's option key. The
// entity is written to the working tree with sequence 0 and becomes durable
// at the next Commit. An entity that already exists is left untouched. Other
// keys and malformed payloads only produce a log.
func (a *App[F]) SetOption(ctx context.Context, key, value string) *abi.SetOptionResult {
	_, span := a.tracer.StartSpan(ctx, "SetOption", otel.AttrKey.String(key))
	defer span.End()

	if key != a.schema.OptionKey() {
		log := "Unrecognized option key " + key
		a.logger.Info("ignoring option", logging.Key(key))
		a.metrics.IncOptions(optionIgnored)
		return &abi.SetOptionResult{Code: abi.CodeOK, Log: log}
	}

	b, err := ParseBootstrap[F](value)
	if err != nil {
		return a.rejectOption(key, err)
	}
	kp, err := keys.DeriveKeyPair(b.Seed)
	if err != nil {
		return a.rejectOption(key, err)
	}

	_, exists, err := a.store.Get(kp.PubKey)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("failed to read bootstrap entity", logging.Key(key), logging.Error(err))
		a.metrics.IncOptions(optionRejected)
		return &abi.SetOptionResult{Code: abi.CodeOK, Log: err.Error()}
	}
	if exists {
		return a.rejectOption(key, fmt.Errorf("%s %s %w", capitalize(a.schema.EntityName()), b.Seed, ErrEntityExists))
	}

	update := state.Update[F]{
		Key:    state.KeyOf(kp.PubKey),
		Entity: codec.Entity[F]{Fields: b.Status},
	}
	if err := a.store.Put([]state.Update[F]{update}); err != nil {
		span.RecordError(err)
		a.logger.Error("failed to write bootstrap entity", logging.Key(key), logging.Error(err))
		a.metrics.IncOptions(optionRejected)
		return &abi.SetOptionResult{Code: abi.CodeOK, Log: err.Error()}
	}

	log := a.schema.Describe(b.Seed, b.Status)
	a.logger.Info(log, logging.PubKey(kp.PubKey))
	a.metrics.IncOptions(optionApplied)
	return &abi.SetOptionResult{Code: abi.CodeOK, Log: log}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *App[F]) rejectOption(key string, err error) *abi.SetOptionResult {
	a.logger.Info("rejecting option", logging.Key(key), logging.Error(err))
	a.metrics.IncOptions(optionRejected)
	return &abi.SetOptionResult{Code: abi.CodeOK, Log: err.Error()}
}

// CheckTx decodes raw and runs the pre-check pass. It never reads the ledger.
func (a *App[F]) CheckTx(ctx context.Context, raw []byte) *abi.TxResult {
	start := time.Now()
	hash := abi.TxHash(raw)
	_, span := a.tracer.StartSpan(ctx, "CheckTx", otel.Bytes(otel.AttrTxHash, hash))
	defer span.End()

	var res *abi.TxResult
	tx, err := codec.Decode(raw, a.schema)
	if err != nil {
		res = abi.Reject(abi.CodeEncodingError, err.Error())
	} else if viol := a.validator.CheckTx(tx); viol != nil {
		res = viol.Result()
	} else {
		res = &abi.TxResult{Code: abi.CodeOK}
	}
	res.Hash = hash

	a.observe(span, metrics.PhaseCheck, res, start)
	return res
}

// DeliverTx applies raw to the working tree. Rejected transactions write
// nothing. An error means the ledger store failed and the call must not be
// treated as a rejection.
func (a *App[F]) DeliverTx(ctx context.Context, raw []byte) (*abi.TxResult, error) {
	start := time.Now()
	hash := abi.TxHash(raw)
	ctx, span := a.tracer.StartSpan(ctx, "DeliverTx", otel.Bytes(otel.AttrTxHash, hash))
	defer span.End()

	tx, res, err := a.deliver(ctx, raw)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("ledger store failure", logging.TxHash(hash), logging.Error(err))
		return nil, err
	}
	res.Hash = hash

	a.observe(span, metrics.PhaseDeliver, res, start)
	a.index(tx, res)
	return res, nil
}

func (a *App[F]) deliver(ctx context.Context, raw []byte) (*codec.Tx[F], *abi.TxResult, error) {
	tx, err := codec.Decode(raw, a.schema)
	if err != nil {
		return nil, abi.Reject(abi.CodeEncodingError, err.Error()), nil
	}
	if viol := a.validator.CheckTx(tx); viol != nil {
		return tx, viol.Result(), nil
	}

	pubKeys := make([][]byte, len(tx.Inputs))
	for i := range tx.Inputs {
		pubKeys[i] = tx.Inputs[i].PubKey
	}

	loadStart := time.Now()
	snap, err := a.store.LoadBatch(ctx, pubKeys)
	if err != nil {
		return tx, nil, fmt.Errorf("%w: %w", abi.ErrStoreFailure, err)
	}
	a.metrics.ObserveBatchLoad(len(pubKeys), time.Since(loadStart))

	if viol := a.validator.CheckState(tx, snap); viol != nil {
		return tx, viol.Result(), nil
	}

	if err := a.store.Put(state.Execute(tx, snap, a.schema.Sequenced())); err != nil {
		return tx, nil, fmt.Errorf("%w: %w", abi.ErrStoreFailure, err)
	}
	return tx, &abi.TxResult{Code: abi.CodeOK}, nil
}

// index records a delivered transaction. Failures are logged and otherwise
// ignored.
func (a *App[F]) index(tx *codec.Tx[F], res *abi.TxResult) {
	rec := &indexer.TxRecord{
		Hash:   res.Hash,
		Height: a.store.Version() + 1,
		Code:   res.Code,
		Log:    res.Log,
	}
	if tx != nil {
		for i := range tx.Inputs {
			rec.PubKeys = append(rec.PubKeys, tx.Inputs[i].PubKey)
		}
	}
	if err := a.indexer.Index(rec); err != nil {
		a.logger.Warn("failed to index transaction", logging.TxHash(res.Hash), logging.Error(err))
	}
}

func (a *App[F]) observe(span *otel.Span, phase string, res *abi.TxResult, start time.Time) {
	span.SetResult(res.Code, res.Log)
	a.metrics.IncTxs(phase, res.Code.String())
	a.metrics.ObserveTxDuration(phase, time.Since(start))

	if res.IsOK() {
		a.logger.Debug("transaction accepted",
			logging.Component(phase), logging.TxHash(res.Hash))
		return
	}
	a.logger.Info("transaction rejected",
		logging.Component(phase),
		logging.TxHash(res.Hash),
		logging.Code(res.Code),
		logging.Reason(res.Log))
}

// Commit persists the working tree. An error is fatal: the ledger cannot
// continue without a durable commit.
func (a *App[F]) Commit(ctx context.Context) (*abi.CommitResult, error) {
	start := time.Now()
	_, span := a.tracer.StartSpan(ctx, "Commit")
	defer span.End()

	hash, version, err := a.store.Commit()
	if err != nil {
		span.RecordError(err)
		a.logger.Error("commit failed", logging.Error(err))
		return nil, fmt.Errorf("%w: %w", abi.ErrCommitFailed, err)
	}

	span.SetAttributes(otel.AttrVersion.Int64(version), otel.Bytes(otel.AttrAppHash, hash))
	a.metrics.SetLedgerVersion(version)
	a.metrics.ObserveCommitDuration(time.Since(start))
	a.logger.Info("committed state", logging.Version(version), logging.Hash(hash))

	return &abi.CommitResult{AppHash: hash, Version: version}, nil
}

// Query returns the stored encoding of the entity keyed by req.Data. A
// missing entity is not an error: the response has an empty value.
//
// Plain queries read the working tree. A query with Prove answers from the
// last committed version so the value and proof match the app hash of the
// reported height; before the first commit it carries no proof.
func (a *App[F]) Query(ctx context.Context, req *abi.QueryRequest) (*abi.QueryResponse, error) {
	_, span := a.tracer.StartSpan(ctx, "Query", otel.Bytes(otel.AttrKey, req.Data))
	defer span.End()

	resp := &abi.QueryResponse{
		Code:   abi.CodeOK,
		Key:    req.Data,
		Height: a.store.Version(),
	}
	if len(req.Data) == 0 {
		resp.Log = LogMissingKey
		a.metrics.IncQueries("invalid")
		return resp, nil
	}

	read := a.store.GetRaw
	if req.Prove {
		read = a.store.GetCommittedRaw
	}
	value, err := read(req.Data)
	if err != nil {
		span.RecordError(err)
		a.metrics.IncQueries("error")
		return nil, fmt.Errorf("%w: %w", abi.ErrStoreFailure, err)
	}
	resp.Value = value
	if len(value) > 0 {
		resp.Log = LogExists
		a.metrics.IncQueries("found")
	} else {
		resp.Log = LogNotExists
		a.metrics.IncQueries("not_found")
	}

	if req.Prove && resp.Height > 0 {
		proof, err := a.store.Proof(req.Data)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: %w", abi.ErrStoreFailure, err)
		}
		resp.Proof = &abi.Proof{Ops: []abi.ProofOp{{
			Type: ProofOpIAVL,
			Key:  req.Data,
			Data: proof.ProofBytes,
		}}}
	}

	a.logger.Debug("query", logging.PubKey(req.Data), logging.Reason(resp.Log))
	return resp, nil
}

// EntityView is the JSON rendering of a stored entity.
type EntityView[F any] struct {
	PubKey   string `json:"pub_key"`
	Sequence uint64 `json:"sequence"`
	Status   F      `json:"status"`
}

// Lookup queries the entity keyed by pubKey and decodes it for display. The
// boolean is false if no entity exists.
func (a *App[F]) Lookup(ctx context.Context, pubKey []byte) (any, bool, error) {
	resp, err := a.Query(ctx, &abi.QueryRequest{Data: pubKey})
	if err != nil {
		return nil, false, err
	}
	if !resp.Exists() {
		return nil, false, nil
	}

	e, err := a.store.Decode(resp.Value)
	if err != nil {
		return nil, false, err
	}
	return &EntityView[F]{
		PubKey:   hex.EncodeToString(pubKey),
		Sequence: e.Sequence,
		Status:   e.Fields,
	}, true, nil
}

// EntityName returns the singular entity noun.
func (a *App[F]) EntityName() string {
	return a.schema.EntityName()
}

// Route returns the plural path segment entities are served under.
func (a *App[F]) Route() string {
	return a.schema.Route()
}

var _ abi.Application = (*App[struct{}])(nil)
