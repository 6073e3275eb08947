package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/indexer/kv"
	"github.com/blockberries/ledgerberry/keys"
	"github.com/blockberries/ledgerberry/ledger"
	"github.com/blockberries/ledgerberry/schemas/device"
	"github.com/blockberries/ledgerberry/schemas/identity"
	"github.com/blockberries/ledgerberry/statestore"
	"github.com/blockberries/ledgerberry/tracing/otel"
	"github.com/blockberries/ledgerberry/txbuilder"
)

var (
	errDisk = errors.New("disk on fire")

	status1a = device.Fields{Latitude: 37.79, Longitude: -122.39, Temperature: 65}
	status1b = device.Fields{Latitude: 37.79, Longitude: -122.39, Temperature: 70}
	status2a = device.Fields{Latitude: 38.5, Longitude: -121.5, Temperature: 48}
)

// countingStore records every store access and fails on demand.
type countingStore struct {
	*statestore.IAVLStore
	gets, sets  atomic.Int64
	failGets    bool
	failSets    bool
	failCommits bool
}

func (c *countingStore) Get(key []byte) ([]byte, error) {
	c.gets.Add(1)
	if c.failGets {
		return nil, errDisk
	}
	return c.IAVLStore.Get(key)
}

func (c *countingStore) Set(key, value []byte) error {
	c.sets.Add(1)
	if c.failSets {
		return errDisk
	}
	return c.IAVLStore.Set(key, value)
}

func (c *countingStore) Commit() ([]byte, int64, error) {
	if c.failCommits {
		return nil, 0, errDisk
	}
	return c.IAVLStore.Commit()
}

func (c *countingStore) accesses() int64 {
	return c.gets.Load() + c.sets.Load()
}

func newDeviceApp(t *testing.T, opts ...Option) (*App[device.Fields], *countingStore) {
	t.Helper()
	kvs, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	t.Cleanup(func() { kvs.Close() })

	cs := &countingStore{IAVLStore: kvs}
	schema := device.New()
	return New[device.Fields](schema, ledger.NewStore[device.Fields](cs, schema), opts...), cs
}

func bootstrapJSON(t *testing.T, seed string, status any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"seed": seed, "status": status})
	require.NoError(t, err)
	return string(b)
}

func configure(t *testing.T, a *App[device.Fields], seed string, status device.Fields) {
	t.Helper()
	res := a.SetOption(context.Background(), "init", bootstrapJSON(t, seed, status))
	require.Equal(t, abi.CodeOK, res.Code)
}

func deviceTx(t *testing.T, seed string, seq uint64, status device.Fields) []byte {
	t.Helper()
	s, err := txbuilder.FromSeed(seed, seq, status)
	require.NoError(t, err)
	return txbuilder.Encode[device.Fields](device.New(), s)
}

func pubKey(t *testing.T, seed string) []byte {
	t.Helper()
	kp, err := keys.DeriveKeyPair(seed)
	require.NoError(t, err)
	return kp.PubKey
}

func queryDevice(t *testing.T, a *App[device.Fields], seed string) *codec.Entity[device.Fields] {
	t.Helper()
	resp, err := a.Query(context.Background(), &abi.QueryRequest{Data: pubKey(t, seed)})
	require.NoError(t, err)
	require.True(t, resp.Exists(), "device %s not found", seed)

	e, err := codec.DecodeEntity(resp.Value, device.New())
	require.NoError(t, err)
	return e
}

func deliver(t *testing.T, a *App[device.Fields], tx []byte) *abi.TxResult {
	t.Helper()
	res, err := a.DeliverTx(context.Background(), tx)
	require.NoError(t, err)
	return res
}

func TestInfo(t *testing.T) {
	a, _ := newDeviceApp(t)
	ctx := context.Background()

	info := a.Info(ctx)
	require.Equal(t, "Auto Dapp v0.0.1", info.Data)
	require.Equal(t, Version, info.Version)
	require.Zero(t, info.LastVersion)

	configure(t, a, "1", status1a)
	commit, err := a.Commit(ctx)
	require.NoError(t, err)

	info = a.Info(ctx)
	require.Equal(t, int64(1), info.LastVersion)
	require.Equal(t, commit.AppHash, info.LastHash)
}

func TestSetOption(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstraps an entity", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		res := a.SetOption(ctx, "init", bootstrapJSON(t, "1", status1a))
		require.Equal(t, abi.CodeOK, res.Code)
		require.Equal(t, "Device 1 gps coordinate = (37.79, -122.39), temperature = 65", res.Log)

		e := queryDevice(t, a, "1")
		require.Zero(t, e.Sequence)
		require.Equal(t, status1a, e.Fields)
	})

	t.Run("unrecognized key is a no-op", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		res := a.SetOption(ctx, "register", bootstrapJSON(t, "1", status1a))
		require.Equal(t, abi.CodeOK, res.Code)
		require.Equal(t, "Unrecognized option key register", res.Log)
		require.Zero(t, cs.accesses())
	})

	t.Run("malformed payload writes nothing", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		for _, value := range []string{"", "{", `{"seed": 1}`, `[]`} {
			res := a.SetOption(ctx, "init", value)
			require.Equal(t, abi.CodeOK, res.Code)
			require.NotEmpty(t, res.Log)
		}
		require.Zero(t, cs.accesses())
	})

	t.Run("empty seed writes nothing", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		res := a.SetOption(ctx, "init", bootstrapJSON(t, "", status1a))
		require.Equal(t, keys.ErrEmptySeed.Error(), res.Log)
		require.Zero(t, cs.accesses())
	})

	t.Run("bootstrap fields are not domain checked", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "far", device.Fields{Latitude: 500})
		require.Equal(t, 500.0, queryDevice(t, a, "far").Fields.Latitude)
	})

	t.Run("existing entity is not reset", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		configure(t, a, "1", status1a)
		tx := deviceTx(t, "1", 0, status1b)
		require.Equal(t, abi.CodeOK, deliver(t, a, tx).Code)

		sets := cs.sets.Load()
		res := a.SetOption(ctx, "init", bootstrapJSON(t, "1", status1a))
		require.Equal(t, abi.CodeOK, res.Code)
		require.Equal(t, "Device 1 already exists", res.Log)
		require.Equal(t, sets, cs.sets.Load())

		e := queryDevice(t, a, "1")
		require.Equal(t, uint64(1), e.Sequence)
		require.Equal(t, status1b, e.Fields)

		replay := deliver(t, a, tx)
		require.Equal(t, abi.CodeBadNonce, replay.Code)
	})

	t.Run("existing entity survives commit", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "1", status1a)
		_, err := a.Commit(ctx)
		require.NoError(t, err)

		res := a.SetOption(ctx, "init", bootstrapJSON(t, "1", status2a))
		require.Equal(t, "Device 1 already exists", res.Log)
		require.Equal(t, status1a, queryDevice(t, a, "1").Fields)
	})

	t.Run("store failure is reported in the log", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		cs.failSets = true
		res := a.SetOption(ctx, "init", bootstrapJSON(t, "1", status1a))
		require.Contains(t, res.Log, errDisk.Error())
	})
}

func TestEndToEnd(t *testing.T) {
	a, _ := newDeviceApp(t)
	ctx := context.Background()

	configure(t, a, "1", status1a)

	tx := deviceTx(t, "1", 0, status1b)
	require.Equal(t, abi.CodeOK, a.CheckTx(ctx, tx).Code)

	res := deliver(t, a, tx)
	require.Equal(t, abi.CodeOK, res.Code)
	require.Equal(t, abi.TxHash(tx), res.Hash)

	e := queryDevice(t, a, "1")
	require.Equal(t, uint64(1), e.Sequence)
	require.Equal(t, 70.0, e.Fields.Temperature)

	commit, err := a.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, commit.AppHash, 32)
	require.Equal(t, int64(1), commit.Version)

	require.Equal(t, uint64(1), queryDevice(t, a, "1").Sequence)
}

func TestMalformedBytesNeverTouchStore(t *testing.T) {
	a, cs := newDeviceApp(t)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
		if _, err := codec.Decode(raw, device.New()); err == nil {
			t.Skip("decodes")
		}

		before := cs.accesses()
		if res := a.CheckTx(ctx, raw); res.Code != abi.CodeEncodingError {
			t.Fatalf("CheckTx code = %s", res.Code)
		}
		res, err := a.DeliverTx(ctx, raw)
		if err != nil {
			t.Fatalf("DeliverTx: %v", err)
		}
		if res.Code != abi.CodeEncodingError {
			t.Fatalf("DeliverTx code = %s", res.Code)
		}
		if cs.accesses() != before {
			t.Fatalf("store accessed")
		}
	})
}

func TestStructurallyInvalidNeverTouchesStore(t *testing.T) {
	a, cs := newDeviceApp(t)

	res := deliver(t, a, txbuilder.Encode[device.Fields](device.New()))
	require.Equal(t, abi.CodeEncodingError, res.Code)
	require.Equal(t, "Tx.inputs.length cannot be 0", res.Log)
	require.Zero(t, cs.accesses())
}

func TestUnknownAccount(t *testing.T) {
	a, cs := newDeviceApp(t)
	configure(t, a, "1", status1a)
	sets := cs.sets.Load()

	res := deliver(t, a, deviceTx(t, "stranger", 0, status1b))
	require.Equal(t, abi.CodeUnknownAccount, res.Code)
	require.Equal(t, "Input device does not exist", res.Log)
	require.Equal(t, sets, cs.sets.Load())

	_, err := a.Commit(context.Background())
	require.NoError(t, err)
	resp, err := a.Query(context.Background(), &abi.QueryRequest{Data: pubKey(t, "stranger")})
	require.NoError(t, err)
	require.False(t, resp.Exists())
}

func TestBadNonceLeavesSequence(t *testing.T) {
	a, _ := newDeviceApp(t)
	configure(t, a, "1", status1a)

	for _, seq := range []uint64{1, 2, 99} {
		res := deliver(t, a, deviceTx(t, "1", seq, status1b))
		require.Equal(t, abi.CodeBadNonce, res.Code)
		require.Equal(t, "Invalid sequence", res.Log)
	}

	e := queryDevice(t, a, "1")
	require.Zero(t, e.Sequence)
	require.Equal(t, status1a, e.Fields)
}

func TestSequencing(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "1", status1a)

		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 0, status1b)).Code)
		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 1, status1a)).Code)
		require.Equal(t, uint64(2), queryDevice(t, a, "1").Sequence)
	})

	t.Run("reordered", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "1", status1a)

		require.Equal(t, abi.CodeBadNonce, deliver(t, a, deviceTx(t, "1", 1, status1a)).Code)
		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 0, status1b)).Code)
		require.Equal(t, uint64(1), queryDevice(t, a, "1").Sequence)
	})

	t.Run("replay is rejected", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "1", status1a)

		tx := deviceTx(t, "1", 0, status1b)
		require.Equal(t, abi.CodeOK, deliver(t, a, tx).Code)
		require.Equal(t, abi.CodeBadNonce, deliver(t, a, tx).Code)
	})

	t.Run("writes survive commit", func(t *testing.T) {
		a, _ := newDeviceApp(t)
		configure(t, a, "1", status1a)
		_, err := a.Commit(context.Background())
		require.NoError(t, err)

		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 0, status1b)).Code)
		_, err = a.Commit(context.Background())
		require.NoError(t, err)
		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 1, status1a)).Code)
	})
}

func TestMultiInput(t *testing.T) {
	a, cs := newDeviceApp(t)
	configure(t, a, "1", status1a)
	configure(t, a, "2", status2a)

	s1, err := txbuilder.FromSeed("1", 0, status1b)
	require.NoError(t, err)
	s2, err := txbuilder.FromSeed("2", 0, status2a)
	require.NoError(t, err)
	stranger, err := txbuilder.FromSeed("stranger", 0, status2a)
	require.NoError(t, err)

	t.Run("one bad input aborts the whole transaction", func(t *testing.T) {
		sets := cs.sets.Load()
		res := deliver(t, a, txbuilder.Encode[device.Fields](device.New(), s1, stranger))
		require.Equal(t, abi.CodeUnknownAccount, res.Code)
		require.Equal(t, sets, cs.sets.Load())
		require.Zero(t, queryDevice(t, a, "1").Sequence)
	})

	t.Run("all inputs applied", func(t *testing.T) {
		res := deliver(t, a, txbuilder.Encode[device.Fields](device.New(), s1, s2))
		require.Equal(t, abi.CodeOK, res.Code)
		require.Equal(t, uint64(1), queryDevice(t, a, "1").Sequence)
		require.Equal(t, uint64(1), queryDevice(t, a, "2").Sequence)
	})

	t.Run("duplicate signer", func(t *testing.T) {
		s, err := txbuilder.FromSeed("1", 1, status1a)
		require.NoError(t, err)
		tx := txbuilder.Encode[device.Fields](device.New(), s, s)

		require.Equal(t, abi.CodeEncodingError, a.CheckTx(context.Background(), tx).Code)
		res := deliver(t, a, tx)
		require.Equal(t, abi.CodeEncodingError, res.Code)
		require.Equal(t, "Duplicate input pubKey", res.Log)
	})
}

func TestCheckTx(t *testing.T) {
	a, cs := newDeviceApp(t)
	ctx := context.Background()

	t.Run("does not read the ledger", func(t *testing.T) {
		res := a.CheckTx(ctx, deviceTx(t, "never-configured", 7, status1a))
		require.Equal(t, abi.CodeOK, res.Code)
		require.Zero(t, cs.accesses())
	})

	t.Run("idempotent", func(t *testing.T) {
		tx := deviceTx(t, "1", 0, device.Fields{Latitude: 95})
		first := a.CheckTx(ctx, tx)
		second := a.CheckTx(ctx, tx)
		require.Equal(t, first, second)
		require.Equal(t, "Input latitude is invalid", first.Log)
	})
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("load failure is an error, not a code", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		configure(t, a, "1", status1a)
		cs.failGets = true

		res, err := a.DeliverTx(ctx, deviceTx(t, "1", 0, status1b))
		require.ErrorIs(t, err, abi.ErrStoreFailure)
		require.ErrorIs(t, err, errDisk)
		require.Nil(t, res)
	})

	t.Run("write failure is an error", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		configure(t, a, "1", status1a)
		cs.failSets = true

		_, err := a.DeliverTx(ctx, deviceTx(t, "1", 0, status1b))
		require.ErrorIs(t, err, abi.ErrStoreFailure)
	})

	t.Run("commit failure", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		cs.failCommits = true

		res, err := a.Commit(ctx)
		require.ErrorIs(t, err, abi.ErrCommitFailed)
		require.Nil(t, res)
	})

	t.Run("query failure", func(t *testing.T) {
		a, cs := newDeviceApp(t)
		cs.failGets = true

		_, err := a.Query(ctx, &abi.QueryRequest{Data: pubKey(t, "1")})
		require.ErrorIs(t, err, abi.ErrStoreFailure)
	})
}

func TestQuery(t *testing.T) {
	a, _ := newDeviceApp(t)
	ctx := context.Background()
	configure(t, a, "1", status1a)
	commit, err := a.Commit(ctx)
	require.NoError(t, err)

	t.Run("missing entity", func(t *testing.T) {
		resp, err := a.Query(ctx, &abi.QueryRequest{Data: pubKey(t, "2")})
		require.NoError(t, err)
		require.Equal(t, abi.CodeOK, resp.Code)
		require.Equal(t, LogNotExists, resp.Log)
		require.Empty(t, resp.Value)
		require.Equal(t, int64(1), resp.Height)
	})

	t.Run("empty key", func(t *testing.T) {
		resp, err := a.Query(ctx, &abi.QueryRequest{})
		require.NoError(t, err)
		require.Equal(t, LogMissingKey, resp.Log)
	})

	t.Run("proof verifies against the app hash", func(t *testing.T) {
		key := pubKey(t, "1")
		resp, err := a.Query(ctx, &abi.QueryRequest{Data: key, Prove: true})
		require.NoError(t, err)
		require.Equal(t, LogExists, resp.Log)
		require.NotNil(t, resp.Proof)
		require.Len(t, resp.Proof.Ops, 1)
		require.Equal(t, ProofOpIAVL, resp.Proof.Ops[0].Type)

		proof := &statestore.Proof{
			Key:        key,
			Value:      resp.Value,
			Exists:     true,
			ProofBytes: resp.Proof.Ops[0].Data,
		}
		ok, err := proof.Verify(commit.AppHash)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("proof mid-block matches the reported height", func(t *testing.T) {
		key := pubKey(t, "1")
		require.Equal(t, abi.CodeOK, deliver(t, a, deviceTx(t, "1", 0, status1b)).Code)
		require.Equal(t, uint64(1), queryDevice(t, a, "1").Sequence)

		resp, err := a.Query(ctx, &abi.QueryRequest{Data: key, Prove: true})
		require.NoError(t, err)
		require.Equal(t, int64(1), resp.Height)
		require.NotNil(t, resp.Proof)

		e, err := codec.DecodeEntity(resp.Value, device.New())
		require.NoError(t, err)
		require.Zero(t, e.Sequence)
		require.Equal(t, status1a, e.Fields)

		proof := &statestore.Proof{
			Key:        key,
			Value:      resp.Value,
			Exists:     true,
			ProofBytes: resp.Proof.Ops[0].Data,
		}
		ok, err := proof.Verify(commit.AppHash)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestQueryProofBeforeFirstCommit(t *testing.T) {
	a, _ := newDeviceApp(t)
	configure(t, a, "1", status1a)

	resp, err := a.Query(context.Background(), &abi.QueryRequest{Data: pubKey(t, "1"), Prove: true})
	require.NoError(t, err)
	require.Zero(t, resp.Height)
	require.Empty(t, resp.Value)
	require.Nil(t, resp.Proof)
}

func TestLookup(t *testing.T) {
	a, _ := newDeviceApp(t)
	ctx := context.Background()
	configure(t, a, "1", status1a)

	view, found, err := a.Lookup(ctx, pubKey(t, "1"))
	require.NoError(t, err)
	require.True(t, found)

	b, err := json.Marshal(view)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"pub_key": "`+keysHex(t, "1")+`",
		"sequence": 0,
		"status": {"latitude": 37.79, "longitude": -122.39, "temperature": 65}
	}`, string(b))

	_, found, err = a.Lookup(ctx, pubKey(t, "2"))
	require.NoError(t, err)
	require.False(t, found)

	require.Equal(t, "device", a.EntityName())
	require.Equal(t, "devices", a.Route())
}

func keysHex(t *testing.T, seed string) string {
	t.Helper()
	kp, err := keys.DeriveKeyPair(seed)
	require.NoError(t, err)
	return kp.PubKeyHex()
}

func TestIndexing(t *testing.T) {
	idx, err := kv.NewLevelDBIndexer(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	defer idx.Close()

	a, _ := newDeviceApp(t, WithIndexer(idx))
	configure(t, a, "1", status1a)

	ok := deviceTx(t, "1", 0, status1b)
	bad := deviceTx(t, "1", 5, status1b)
	deliver(t, a, ok)
	deliver(t, a, bad)
	deliver(t, a, []byte{0xff})

	rec, err := idx.Get(abi.TxHash(ok))
	require.NoError(t, err)
	require.Equal(t, abi.CodeOK, rec.Code)
	require.Equal(t, int64(1), rec.Height)
	require.Equal(t, [][]byte{pubKey(t, "1")}, rec.PubKeys)

	rec, err = idx.Get(abi.TxHash(bad))
	require.NoError(t, err)
	require.Equal(t, abi.CodeBadNonce, rec.Code)
	require.Equal(t, "Invalid sequence", rec.Log)

	rec, err = idx.Get(abi.TxHash([]byte{0xff}))
	require.NoError(t, err)
	require.Equal(t, abi.CodeEncodingError, rec.Code)
	require.Empty(t, rec.PubKeys)

	recs, err := idx.ByPubKey(pubKey(t, "1"), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestIndexFailureDoesNotChangeResult(t *testing.T) {
	idx, err := kv.NewLevelDBIndexer(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	a, _ := newDeviceApp(t, WithIndexer(idx))
	configure(t, a, "1", status1a)

	res := deliver(t, a, deviceTx(t, "1", 0, status1b))
	require.Equal(t, abi.CodeOK, res.Code)

	_, err = idx.Get(res.Hash)
	require.ErrorIs(t, err, indexer.ErrClosed)
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	a, _ := newDeviceApp(t, WithTracer(otel.NewTracerWithProvider("test", provider)))
	ctx := context.Background()

	configure(t, a, "1", status1a)
	a.CheckTx(ctx, deviceTx(t, "1", 0, status1b))
	deliver(t, a, deviceTx(t, "1", 0, status1b))
	_, err := a.Commit(ctx)
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"SetOption", "CheckTx", "DeliverTx", "Commit"}, names)
}

func TestIdentityLedger(t *testing.T) {
	kvs, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	defer kvs.Close()

	schema := identity.New()
	a := New[identity.Fields](schema, ledger.NewStore[identity.Fields](kvs, schema))
	ctx := context.Background()

	require.Equal(t, "Auto Identity Dapp v0.0.1", a.Info(ctx).Data)

	alice := identity.Fields{Name: "Alice", Email: "alice@example.com"}
	res := a.SetOption(ctx, "register", bootstrapJSON(t, "1", alice))
	require.Equal(t, "User 1 name = Alice, email = alice@example.com", res.Log)
	require.Equal(t, "Unrecognized option key init", a.SetOption(ctx, "init", "{}").Log)

	update := func(seed string, f identity.Fields) []byte {
		s, err := txbuilder.FromSeed(seed, 0, f)
		require.NoError(t, err)
		return txbuilder.Encode[identity.Fields](schema, s)
	}

	t.Run("unsequenced updates may repeat", func(t *testing.T) {
		tx := update("1", identity.Fields{Name: "Alice B", Email: "alice@example.org"})
		for i := 0; i < 2; i++ {
			r, err := a.DeliverTx(ctx, tx)
			require.NoError(t, err)
			require.Equal(t, abi.CodeOK, r.Code)
		}

		view, found, err := a.Lookup(ctx, pubKey(t, "1"))
		require.NoError(t, err)
		require.True(t, found)
		v := view.(*EntityView[identity.Fields])
		require.Zero(t, v.Sequence)
		require.Equal(t, "Alice B", v.Status.Name)
	})

	t.Run("invalid email", func(t *testing.T) {
		r := a.CheckTx(ctx, update("1", identity.Fields{Name: "x", Email: "not-an-email"}))
		require.Equal(t, abi.CodeEncodingError, r.Code)
		require.Equal(t, "Input email is invalid", r.Log)
	})

	t.Run("unknown user", func(t *testing.T) {
		r, err := a.DeliverTx(ctx, update("2", alice))
		require.NoError(t, err)
		require.Equal(t, abi.CodeUnknownAccount, r.Code)
		require.Equal(t, "Input user does not exist", r.Log)
	})
}
