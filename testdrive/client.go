package testdrive

import (
	"context"
	"fmt"

	abcicli "github.com/tendermint/tendermint/abci/client"
	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/blockberries/ledgerberry/abciserver"
	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/logging"
)

// Client is the part of the lifecycle the driver exercises.
type Client interface {
	SetOption(ctx context.Context, key, value string) (*abi.SetOptionResult, error)
	CheckTx(ctx context.Context, tx []byte) (*abi.TxResult, error)
	DeliverTx(ctx context.Context, tx []byte) (*abi.TxResult, error)
	Commit(ctx context.Context) (*abi.CommitResult, error)
	Query(ctx context.Context, req *abi.QueryRequest) (*abi.QueryResponse, error)
}

// LocalClient drives an application in process.
type LocalClient struct {
	app abi.Application
}

// NewLocalClient returns a client calling app directly.
func NewLocalClient(app abi.Application) *LocalClient {
	return &LocalClient{app: app}
}

func (c *LocalClient) SetOption(ctx context.Context, key, value string) (*abi.SetOptionResult, error) {
	return c.app.SetOption(ctx, key, value), nil
}

func (c *LocalClient) CheckTx(ctx context.Context, tx []byte) (*abi.TxResult, error) {
	return c.app.CheckTx(ctx, tx), nil
}

func (c *LocalClient) DeliverTx(ctx context.Context, tx []byte) (*abi.TxResult, error) {
	return c.app.DeliverTx(ctx, tx)
}

func (c *LocalClient) Commit(ctx context.Context) (*abi.CommitResult, error) {
	return c.app.Commit(ctx)
}

func (c *LocalClient) Query(ctx context.Context, req *abi.QueryRequest) (*abi.QueryResponse, error) {
	return c.app.Query(ctx, req)
}

// ABCIClient drives a running application over the ABCI socket protocol.
type ABCIClient struct {
	cli abcicli.Client
}

// DialABCI connects to the application listening on addr.
func DialABCI(addr string, logger *logging.Logger) (*ABCIClient, error) {
	cli, err := abcicli.NewClient(addr, abciserver.TransportSocket, true)
	if err != nil {
		return nil, fmt.Errorf("creating ABCI client: %w", err)
	}
	if logger != nil {
		cli.SetLogger(abciserver.NewTMLogger(logger.WithComponent("abci-client")))
	}
	if err := cli.Start(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &ABCIClient{cli: cli}, nil
}

// Close disconnects from the application.
func (c *ABCIClient) Close() error {
	return c.cli.Stop()
}

// Info returns the application description and last committed state.
func (c *ABCIClient) Info(context.Context) (*abi.InfoResult, error) {
	resp, err := c.cli.InfoSync(abcitypes.RequestInfo{})
	if err != nil {
		return nil, err
	}
	return &abi.InfoResult{
		Data:        resp.Data,
		Version:     resp.Version,
		LastVersion: resp.LastBlockHeight,
		LastHash:    resp.LastBlockAppHash,
	}, nil
}

func (c *ABCIClient) SetOption(_ context.Context, key, value string) (*abi.SetOptionResult, error) {
	resp, err := c.cli.SetOptionSync(abcitypes.RequestSetOption{Key: key, Value: value})
	if err != nil {
		return nil, err
	}
	return &abi.SetOptionResult{Code: abi.ResultCode(resp.Code), Log: resp.Log}, nil
}

func (c *ABCIClient) CheckTx(_ context.Context, tx []byte) (*abi.TxResult, error) {
	resp, err := c.cli.CheckTxSync(abcitypes.RequestCheckTx{Tx: tx})
	if err != nil {
		return nil, err
	}
	return &abi.TxResult{Code: abi.ResultCode(resp.Code), Log: resp.Log, Hash: abi.TxHash(tx)}, nil
}

func (c *ABCIClient) DeliverTx(_ context.Context, tx []byte) (*abi.TxResult, error) {
	resp, err := c.cli.DeliverTxSync(abcitypes.RequestDeliverTx{Tx: tx})
	if err != nil {
		return nil, err
	}
	return &abi.TxResult{Code: abi.ResultCode(resp.Code), Log: resp.Log, Hash: abi.TxHash(tx)}, nil
}

// Commit returns the app hash. The socket protocol does not carry the
// version, so Version is left zero.
func (c *ABCIClient) Commit(context.Context) (*abi.CommitResult, error) {
	resp, err := c.cli.CommitSync()
	if err != nil {
		return nil, err
	}
	return &abi.CommitResult{AppHash: resp.Data}, nil
}

func (c *ABCIClient) Query(_ context.Context, req *abi.QueryRequest) (*abi.QueryResponse, error) {
	resp, err := c.cli.QuerySync(abcitypes.RequestQuery{Path: req.Path, Data: req.Data, Prove: req.Prove})
	if err != nil {
		return nil, err
	}
	out := &abi.QueryResponse{
		Code:   abi.ResultCode(resp.Code),
		Log:    resp.Log,
		Key:    resp.Key,
		Value:  resp.Value,
		Height: resp.Height,
	}
	if resp.ProofOps != nil {
		out.Proof = &abi.Proof{}
		for _, op := range resp.ProofOps.Ops {
			out.Proof.Ops = append(out.Proof.Ops, abi.ProofOp{Type: op.Type, Key: op.Key, Data: op.Data})
		}
	}
	return out, nil
}

var (
	_ Client = (*LocalClient)(nil)
	_ Client = (*ABCIClient)(nil)
)
