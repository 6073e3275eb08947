// Package testdrive runs a scripted device-ledger session against a running
// application and reports every result that differs from the expected one.
package testdrive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/schemas/device"
	"github.com/blockberries/ledgerberry/txbuilder"
)

// Mismatch is a step whose outcome differed from the expected one.
type Mismatch struct {
	Step string
	Want string
	Got  string
	Log  string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: wanted %s but got %s. log: %s", m.Step, m.Want, m.Got, m.Log)
}

// Report summarizes a run.
type Report struct {
	Steps      int
	Mismatches []Mismatch
	AppHash    []byte
}

// OK reports whether every step produced the expected outcome.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0
}

type deviceState struct {
	seed     string
	sequence uint64
}

// Driver plays the scenario through a Client.
type Driver struct {
	client Client
	schema *device.Schema
	logger *logging.Logger
	report *Report
}

// NewDriver returns a driver over client.
func NewDriver(client Client, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Driver{
		client: client,
		schema: device.New(),
		logger: logger.WithComponent("testdrive"),
	}
}

// Run configures devices "1" and "2", moves both to a new temperature,
// re-checks the first update, replays it, commits and reads both devices
// back. Transport failures abort the run; unexpected results are collected
// in the report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	d.report = &Report{}

	status1a := device.Fields{Latitude: 37.7938462, Longitude: -122.394837, Temperature: 65}
	status1b := device.Fields{Latitude: 37.7938462, Longitude: -122.394837, Temperature: 70}
	status2a := device.Fields{Latitude: 45.500618, Longitude: -73.56778, Temperature: 65}
	status2b := device.Fields{Latitude: 45.500618, Longitude: -73.56778, Temperature: 70}

	dev1 := &deviceState{seed: "1"}
	dev2 := &deviceState{seed: "2"}

	if err := d.setOption(ctx, dev1.seed, status1a); err != nil {
		return nil, err
	}
	if err := d.setOption(ctx, dev2.seed, status2a); err != nil {
		return nil, err
	}

	tx1, err := d.tx(dev1, status1b)
	if err != nil {
		return nil, err
	}
	if err := d.deliver(ctx, "deliver device 1", dev1, tx1, abi.CodeOK); err != nil {
		return nil, err
	}

	tx1b, err := d.tx(dev1, status1b)
	if err != nil {
		return nil, err
	}
	if err := d.check(ctx, "check device 1", tx1b, abi.CodeOK); err != nil {
		return nil, err
	}

	tx2, err := d.tx(dev2, status2b)
	if err != nil {
		return nil, err
	}
	if err := d.deliver(ctx, "deliver device 2", dev2, tx2, abi.CodeOK); err != nil {
		return nil, err
	}
	if err := d.deliver(ctx, "replay device 1", nil, tx1, abi.CodeBadNonce); err != nil {
		return nil, err
	}

	commit, err := d.client.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	d.report.Steps++
	d.report.AppHash = commit.AppHash

	if err := d.expectEntity(ctx, dev1, status1b); err != nil {
		return nil, err
	}
	if err := d.expectEntity(ctx, dev2, status2b); err != nil {
		return nil, err
	}

	for _, m := range d.report.Mismatches {
		d.logger.Warn("unexpected result", "step", m.Step, "want", m.Want, "got", m.Got, "log", m.Log)
	}
	d.logger.Info("test done", "steps", d.report.Steps, "mismatches", len(d.report.Mismatches))
	return d.report, nil
}

func (d *Driver) tx(dev *deviceState, status device.Fields) ([]byte, error) {
	s, err := txbuilder.FromSeed(dev.seed, dev.sequence, status)
	if err != nil {
		return nil, err
	}
	return txbuilder.Encode[device.Fields](d.schema, s), nil
}

func (d *Driver) setOption(ctx context.Context, seed string, status device.Fields) error {
	value, err := json.Marshal(map[string]any{"seed": seed, "status": status})
	if err != nil {
		return err
	}
	res, err := d.client.SetOption(ctx, d.schema.OptionKey(), string(value))
	if err != nil {
		return fmt.Errorf("set option %s: %w", seed, err)
	}
	d.expectCode("configure device "+seed, abi.CodeOK, res.Code, res.Log)
	return nil
}

// deliver sends tx and advances dev's sequence when it is accepted. dev may
// be nil for transactions that must not advance any local state.
func (d *Driver) deliver(ctx context.Context, step string, dev *deviceState, tx []byte, want abi.ResultCode) error {
	res, err := d.client.DeliverTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	d.expectCode(step, want, res.Code, res.Log)
	if res.Code.IsOK() && dev != nil {
		dev.sequence++
	}
	return nil
}

func (d *Driver) check(ctx context.Context, step string, tx []byte, want abi.ResultCode) error {
	res, err := d.client.CheckTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	d.expectCode(step, want, res.Code, res.Log)
	return nil
}

func (d *Driver) expectCode(step string, want, got abi.ResultCode, log string) {
	d.report.Steps++
	if want != got {
		d.report.Mismatches = append(d.report.Mismatches, Mismatch{
			Step: step, Want: want.String(), Got: got.String(), Log: log,
		})
	}
}

func (d *Driver) expectEntity(ctx context.Context, dev *deviceState, want device.Fields) error {
	step := "query device " + dev.seed
	s, err := txbuilder.FromSeed(dev.seed, 0, want)
	if err != nil {
		return err
	}

	resp, err := d.client.Query(ctx, &abi.QueryRequest{Data: s.Key.PubKey})
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	d.report.Steps++
	if !resp.Exists() {
		d.report.Mismatches = append(d.report.Mismatches, Mismatch{
			Step: step, Want: "stored device", Got: "nothing", Log: resp.Log,
		})
		return nil
	}

	e, err := codec.DecodeEntity[device.Fields](resp.Value, d.schema)
	if err != nil {
		d.report.Mismatches = append(d.report.Mismatches, Mismatch{
			Step: step, Want: "decodable device", Got: "undecodable value", Log: err.Error(),
		})
		return nil
	}
	if e.Sequence != dev.sequence || e.Fields != want {
		d.report.Mismatches = append(d.report.Mismatches, Mismatch{
			Step: step,
			Want: fmt.Sprintf("sequence %d status %+v", dev.sequence, want),
			Got:  fmt.Sprintf("sequence %d status %+v", e.Sequence, e.Fields),
		})
	}
	return nil
}
