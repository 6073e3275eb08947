// Package otel traces ledger lifecycle operations with OpenTelemetry.
package otel

import (
	"context"
	"encoding/hex"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/blockberries/ledgerberry/abi"
)

// Span attribute keys.
const (
	AttrLedger  = attribute.Key("ledger.name")
	AttrCode    = attribute.Key("ledger.result_code")
	AttrTxHash  = attribute.Key("ledger.tx_hash")
	AttrInputs  = attribute.Key("ledger.inputs")
	AttrVersion = attribute.Key("ledger.version")
	AttrKey     = attribute.Key("ledger.key")
	AttrAppHash = attribute.Key("ledger.app_hash")
)

// Tracer starts spans for ledger operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// NewTracerWithProvider creates a tracer using a specific TracerProvider.
func NewTracerWithProvider(serviceName string, provider trace.TracerProvider) *Tracer {
	return &Tracer{tracer: provider.Tracer(serviceName)}
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() *Tracer {
	return NewTracerWithProvider("", noop.NewTracerProvider())
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, s := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: s}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}

// SetAttributes sets attributes on the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// SetResult records a result code. Rejections are not span errors: they are
// expected outcomes, so the status stays unset and only the code is recorded.
func (s *Span) SetResult(code abi.ResultCode, log string) {
	s.span.SetAttributes(AttrCode.String(code.String()))
	if code.IsError() {
		s.span.AddEvent("rejected", trace.WithAttributes(attribute.String("log", log)))
	}
}

// RecordError records a fault and marks the span failed.
func (s *Span) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// IsRecording returns true if the span is recording events.
func (s *Span) IsRecording() bool {
	return s.span.IsRecording()
}

// Bytes renders a binary attribute as hex.
func Bytes(key attribute.Key, b []byte) attribute.KeyValue {
	return key.String(hex.EncodeToString(b))
}
