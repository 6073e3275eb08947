// Package identity is the user registry ledger: each entity is a user with
// a name and an email address. User inputs are not sequenced.
package identity

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/ledgerberry/codec"
	"github.com/blockberries/ledgerberry/schemas/internal/fieldcheck"
)

// Ledger name used in configuration.
const Name = "identity"

const (
	fieldName  protowire.Number = codec.FirstDomainField
	fieldEmail protowire.Number = codec.FirstDomainField + 1
)

// Unquoted local parts exclude every Unicode space separator and line
// terminator; quoted ones exclude the line terminators only.
const (
	spaceChars = `\t\n\v\f\r \x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`
	quotedChar = `[^\n\r\x{2028}\x{2029}]`
	localAtom  = `[^<>()\[\]\\.,;:` + spaceChars + `@"]`
)

var emailPattern = regexp.MustCompile(`^((` + localAtom + `+(\.` + localAtom + `+)*)|("` + quotedChar + `+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// Fields is the user profile. Email is validated before name.
type Fields struct {
	Email string `json:"email" validate:"ledger_email"`
	Name  string `json:"name"`
}

// Schema implements the identity ledger schema.
type Schema struct {
	validate *validator.Validate
}

// New returns the identity schema.
func New() *Schema {
	v := fieldcheck.New()
	// Registration only fails for an empty tag name or nil func.
	_ = v.RegisterValidation("ledger_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &Schema{validate: v}
}

func (*Schema) Name() string       { return Name }
func (*Schema) EntityName() string { return "user" }
func (*Schema) Route() string      { return "users" }
func (*Schema) Info() string       { return "Auto Identity Dapp" }
func (*Schema) OptionKey() string  { return "register" }
func (*Schema) Sequenced() bool    { return false }

// ValidateFields checks the email address.
func (s *Schema) ValidateFields(f Fields) error {
	return fieldcheck.Check(s.validate, f)
}

// Describe renders a bootstrap entry for the log.
func (*Schema) Describe(seed string, f Fields) string {
	return fmt.Sprintf("User %s name = %s, email = %s", seed, f.Name, f.Email)
}

func (*Schema) AppendFields(b []byte, f Fields) []byte {
	b = codec.AppendString(b, fieldName, f.Name)
	return codec.AppendString(b, fieldEmail, f.Email)
}

func (*Schema) ConsumeField(f *Fields, num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	var (
		n   int
		err error
	)
	switch num {
	case fieldName:
		f.Name, n, err = codec.ConsumeString(typ, b)
	case fieldEmail:
		f.Email, n, err = codec.ConsumeString(typ, b)
	default:
		return 0, fmt.Errorf("%w %d", codec.ErrUnknownField, num)
	}
	return n, err
}
