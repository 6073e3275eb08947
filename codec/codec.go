// Package codec implements the binary wire format of ledger transactions and
// stored entities.
//
// Messages use the protobuf wire format with a fixed, hand-declared schema:
//
//	Tx     { repeated Input inputs = 1; }
//	Input  { bytes pub_key = 1; bytes signature = 2; uint64 sequence = 3; <domain fields from 4> }
//	Entity { bytes pub_key = 1; uint64 sequence = 3; <domain fields from 4> }
//
// The sequence field only exists on sequenced ledgers. Domain fields are
// supplied by a FieldCodec. Encoding is canonical: fields are written in
// ascending field-number order and zero values are omitted, so equal messages
// always encode to equal bytes. Signatures cover SignBytes, which is the
// transaction encoding with every signature removed.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers shared by every ledger schema.
const (
	fieldTxInputs    protowire.Number = 1
	fieldPubKey      protowire.Number = 1
	fieldInputSig    protowire.Number = 2
	fieldSequence    protowire.Number = 3
	FirstDomainField protowire.Number = 4
)

var (
	// ErrDecoding is wrapped by every decoding failure.
	ErrDecoding = errors.New("malformed encoding")

	// ErrUnknownField is returned by a FieldCodec for a field number it does
	// not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrWireType is returned when a known field carries the wrong wire type.
	ErrWireType = errors.New("unexpected wire type")

	// ErrInvalidUTF8 is returned for string fields that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8 in string field")
)

// FieldCodec encodes the domain fields of one ledger schema.
type FieldCodec[F any] interface {
	// Sequenced reports whether inputs and entities carry a sequence number.
	Sequenced() bool

	// AppendFields appends the non-zero domain fields of f in ascending
	// field-number order. Field numbers start at FirstDomainField.
	AppendFields(b []byte, f F) []byte

	// ConsumeField decodes the value of field num from b into f and returns
	// the number of bytes consumed. It returns ErrUnknownField for field
	// numbers it does not declare.
	ConsumeField(f *F, num protowire.Number, typ protowire.Type, b []byte) (int, error)
}

// Input is one signed state update within a transaction.
type Input[F any] struct {
	PubKey    []byte
	Signature []byte
	Sequence  uint64
	Fields    F
}

// Tx is an ordered list of inputs.
type Tx[F any] struct {
	Inputs []Input[F]
}

// Entity is the stored state of one ledger participant. PubKey repeats the
// store key, which also keeps every stored value non-empty.
type Entity[F any] struct {
	PubKey   []byte
	Sequence uint64
	Fields   F
}

// Encode returns the canonical encoding of tx.
func Encode[F any](tx *Tx[F], fc FieldCodec[F]) []byte {
	return appendTx(nil, tx, fc, true)
}

// SignBytes returns the bytes every input signs: the encoding of tx with all
// signatures removed. Input order and all other fields are unchanged.
func SignBytes[F any](tx *Tx[F], fc FieldCodec[F]) []byte {
	return appendTx(nil, tx, fc, false)
}

func appendTx[F any](b []byte, tx *Tx[F], fc FieldCodec[F], withSig bool) []byte {
	for i := range tx.Inputs {
		in := appendInput(nil, &tx.Inputs[i], fc, withSig)
		b = protowire.AppendTag(b, fieldTxInputs, protowire.BytesType)
		b = protowire.AppendBytes(b, in)
	}
	return b
}

func appendInput[F any](b []byte, in *Input[F], fc FieldCodec[F], withSig bool) []byte {
	b = AppendBytes(b, fieldPubKey, in.PubKey)
	if withSig {
		b = AppendBytes(b, fieldInputSig, in.Signature)
	}
	if fc.Sequenced() {
		b = AppendUvarint(b, fieldSequence, in.Sequence)
	}
	return fc.AppendFields(b, in.Fields)
}

// Decode parses a transaction. Unknown fields, mismatched wire types,
// truncated data and a sequence on an unsequenced ledger are rejected.
// Byte slices in the result never alias b.
func Decode[F any](b []byte, fc FieldCodec[F]) (*Tx[F], error) {
	tx := &Tx[F]{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireError("tx", protowire.ParseError(n))
		}
		b = b[n:]

		if num != fieldTxInputs {
			return nil, fmt.Errorf("%w: tx: %w %d", ErrDecoding, ErrUnknownField, num)
		}
		if typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: tx.inputs: %w", ErrDecoding, ErrWireType)
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, wireError("tx.inputs", protowire.ParseError(n))
		}
		b = b[n:]

		in, err := decodeInput(v, fc)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}
	return tx, nil
}

func decodeInput[F any](b []byte, fc FieldCodec[F]) (Input[F], error) {
	var in Input[F]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return in, wireError("input", protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == fieldPubKey:
			in.PubKey, n, err = ConsumeBytes(typ, b)
		case num == fieldInputSig:
			in.Signature, n, err = ConsumeBytes(typ, b)
		case num == fieldSequence && fc.Sequenced():
			in.Sequence, n, err = ConsumeUvarint(typ, b)
		case num >= FirstDomainField:
			n, err = fc.ConsumeField(&in.Fields, num, typ, b)
		default:
			err = fmt.Errorf("%w %d", ErrUnknownField, num)
		}
		if err != nil {
			return in, fmt.Errorf("%w: input: %w", ErrDecoding, err)
		}
		b = b[n:]
	}
	return in, nil
}

// EncodeEntity returns the canonical encoding of e.
func EncodeEntity[F any](e *Entity[F], fc FieldCodec[F]) []byte {
	b := AppendBytes(nil, fieldPubKey, e.PubKey)
	if fc.Sequenced() {
		b = AppendUvarint(b, fieldSequence, e.Sequence)
	}
	return fc.AppendFields(b, e.Fields)
}

// DecodeEntity parses a stored entity.
func DecodeEntity[F any](b []byte, fc FieldCodec[F]) (*Entity[F], error) {
	e := &Entity[F]{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireError("entity", protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == fieldPubKey:
			e.PubKey, n, err = ConsumeBytes(typ, b)
		case num == fieldSequence && fc.Sequenced():
			e.Sequence, n, err = ConsumeUvarint(typ, b)
		case num >= FirstDomainField:
			n, err = fc.ConsumeField(&e.Fields, num, typ, b)
		default:
			err = fmt.Errorf("%w %d", ErrUnknownField, num)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: entity: %w", ErrDecoding, err)
		}
		b = b[n:]
	}
	return e, nil
}

func wireError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecoding, msg, err)
}
