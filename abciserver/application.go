// Package abciserver exposes an abi.Application to a Tendermint node over
// the ABCI socket or gRPC protocol.
package abciserver

import (
	"context"
	"fmt"

	abcitypes "github.com/tendermint/tendermint/abci/types"
	tmcrypto "github.com/tendermint/tendermint/proto/tendermint/crypto"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/logging"
)

// AppVersion is the application protocol version reported to Tendermint.
const AppVersion uint64 = 1

// codeInternalError answers a query the ledger store could not serve. It is
// never a transaction result.
const codeInternalError uint32 = 1

// Application adapts an abi.Application to the Tendermint ABCI interface.
// Block boundaries, chain initialization and state sync use the
// BaseApplication defaults.
type Application struct {
	abcitypes.BaseApplication

	app    abi.Application
	logger *logging.Logger
}

// NewApplication wraps app.
func NewApplication(app abi.Application, logger *logging.Logger) *Application {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Application{
		app:    app,
		logger: logger.WithComponent("abci"),
	}
}

func (a *Application) Info(req abcitypes.RequestInfo) abcitypes.ResponseInfo {
	res := a.app.Info(context.Background())
	a.logger.Debug("info",
		"tendermint_version", req.Version,
		logging.Version(res.LastVersion))

	return abcitypes.ResponseInfo{
		Data:             res.Data,
		Version:          res.Version,
		AppVersion:       AppVersion,
		LastBlockHeight:  res.LastVersion,
		LastBlockAppHash: res.LastHash,
	}
}

func (a *Application) SetOption(req abcitypes.RequestSetOption) abcitypes.ResponseSetOption {
	res := a.app.SetOption(context.Background(), req.Key, req.Value)
	return abcitypes.ResponseSetOption{Code: uint32(res.Code), Log: res.Log}
}

func (a *Application) CheckTx(req abcitypes.RequestCheckTx) abcitypes.ResponseCheckTx {
	res := a.app.CheckTx(context.Background(), req.Tx)
	return abcitypes.ResponseCheckTx{Code: uint32(res.Code), Log: res.Log}
}

// DeliverTx panics when the ledger store fails. Tendermint must not treat a
// store fault as a rejected transaction, and the socket server closes the
// connection on a panic, which halts the node.
func (a *Application) DeliverTx(req abcitypes.RequestDeliverTx) abcitypes.ResponseDeliverTx {
	res, err := a.app.DeliverTx(context.Background(), req.Tx)
	if err != nil {
		a.logger.Error("halting on DeliverTx failure", logging.Error(err))
		panic(fmt.Sprintf("DeliverTx: %v", err))
	}
	return abcitypes.ResponseDeliverTx{Code: uint32(res.Code), Log: res.Log}
}

// Commit panics when the working state cannot be persisted.
func (a *Application) Commit() abcitypes.ResponseCommit {
	res, err := a.app.Commit(context.Background())
	if err != nil {
		a.logger.Error("halting on Commit failure", logging.Error(err))
		panic(fmt.Sprintf("Commit: %v", err))
	}
	return abcitypes.ResponseCommit{Data: res.AppHash}
}

func (a *Application) Query(req abcitypes.RequestQuery) abcitypes.ResponseQuery {
	res, err := a.app.Query(context.Background(), &abi.QueryRequest{
		Path:  req.Path,
		Data:  req.Data,
		Prove: req.Prove,
	})
	if err != nil {
		a.logger.Error("query failed", logging.Error(err))
		return abcitypes.ResponseQuery{Code: codeInternalError, Log: err.Error(), Key: req.Data}
	}

	resp := abcitypes.ResponseQuery{
		Code:   uint32(res.Code),
		Log:    res.Log,
		Key:    res.Key,
		Value:  res.Value,
		Height: res.Height,
	}
	if res.Proof != nil {
		ops := make([]tmcrypto.ProofOp, len(res.Proof.Ops))
		for i, op := range res.Proof.Ops {
			ops[i] = tmcrypto.ProofOp{Type: op.Type, Key: op.Key, Data: op.Data}
		}
		resp.ProofOps = &tmcrypto.ProofOps{Ops: ops}
	}
	return resp
}

var _ abcitypes.Application = (*Application)(nil)
