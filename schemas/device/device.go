// Package device is the telemetry ledger: each entity is a device reporting
// its GPS position and temperature. Device inputs carry a sequence number.
package device

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/schemas/internal/fieldcheck"
)

// Ledger name used in configuration.
const Name = "device"

const (
	fieldLatitude    protowire.Number = codec.FirstDomainField
	fieldLongitude   protowire.Number = codec.FirstDomainField + 1
	fieldTemperature protowire.Number = codec.FirstDomainField + 2
)

// Fields is the device status. Latitude and longitude must lie within
// ±90 and ±180 degrees; NaN and infinities are out of range.
type Fields struct {
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Temperature float64 `json:"temperature"`
}

// Schema implements the device ledger schema.
type Schema struct {
	validate *validator.Validate
}

// New returns the device schema.
func New() *Schema {
	return &Schema{validate: fieldcheck.New()}
}

func (*Schema) Name() string       { return Name }
func (*Schema) EntityName() string { return "device" }
func (*Schema) Route() string      { return "devices" }
func (*Schema) Info() string       { return "Auto Dapp" }
func (*Schema) OptionKey() string  { return "init" }
func (*Schema) Sequenced() bool    { return true }

// ValidateFields checks the coordinate ranges.
func (s *Schema) ValidateFields(f Fields) error {
	return fieldcheck.Check(s.validate, f)
}

// Describe renders a bootstrap entry for the log.
func (*Schema) Describe(seed string, f Fields) string {
	return fmt.Sprintf("Device %s gps coordinate = (%v, %v), temperature = %v",
		seed, f.Latitude, f.Longitude, f.Temperature)
}

func (*Schema) AppendFields(b []byte, f Fields) []byte {
	b = codec.AppendDouble(b, fieldLatitude, f.Latitude)
	b = codec.AppendDouble(b, fieldLongitude, f.Longitude)
	return codec.AppendDouble(b, fieldTemperature, f.Temperature)
}

func (*Schema) ConsumeField(f *Fields, num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	var (
		n   int
		err error
	)
	switch num {
	case fieldLatitude:
		f.Latitude, n, err = codec.ConsumeDouble(typ, b)
	case fieldLongitude:
		f.Longitude, n, err = codec.ConsumeDouble(typ, b)
	case fieldTemperature:
		f.Temperature, n, err = codec.ConsumeDouble(typ, b)
	default:
		return 0, fmt.Errorf("%w %d", codec.ErrUnknownField, num)
	}
	return n, err
}
