package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledgerberry/codec"
)

func TestValidateFields(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		email string
		ok    bool
	}{
		{name: "simple", email: "alice@example.com", ok: true},
		{name: "dotted local part", email: "alice.smith@mail.example.org", ok: true},
		{name: "quoted local part", email: `"alice smith"@example.com`, ok: true},
		{name: "ip literal", email: "bob@[10.0.0.1]", ok: true},
		{name: "empty", email: ""},
		{name: "missing at", email: "alice.example.com"},
		{name: "missing tld", email: "alice@localhost"},
		{name: "short tld", email: "alice@example.c"},
		{name: "space in local part", email: "alice smith@example.com"},
		{name: "vertical tab in local part", email: "al\vex@bbb.com"},
		{name: "no-break space in local part", email: "al\u00a0ex@bbb.com"},
		{name: "line separator in local part", email: "al\u2028ex@bbb.com"},
		{name: "ideographic space in local part", email: "al\u3000ex@bbb.com"},
		{name: "byte order mark in local part", email: "al\ufeffex@bbb.com"},
		{name: "carriage return in quoted local part", email: "\"al\rex\"@bbb.com"},
		{name: "paragraph separator in quoted local part", email: "\"al\u2029ex\"@bbb.com"},
		{name: "non-ascii local part", email: "zoë@example.com", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateFields(Fields{Name: "Alice", Email: tt.email})
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, "Input email is invalid")
		})
	}
}

func TestEntityEncoding(t *testing.T) {
	s := New()

	t.Run("round trip", func(t *testing.T) {
		e := &codec.Entity[Fields]{Fields: Fields{Name: "Alice", Email: "alice@example.com"}}
		decoded, err := codec.DecodeEntity(codec.EncodeEntity(e, s), s)
		require.NoError(t, err)
		require.Equal(t, e, decoded)
	})

	t.Run("sequence field is rejected", func(t *testing.T) {
		raw := codec.AppendUvarint(nil, 3, 1)
		_, err := codec.DecodeEntity(raw, s)
		require.ErrorIs(t, err, codec.ErrDecoding)
	})
}

func TestDescribe(t *testing.T) {
	s := New()
	msg := s.Describe("1", Fields{Name: "Alice", Email: "alice@example.com"})
	require.Equal(t, "User 1 name = Alice, email = alice@example.com", msg)
}

func TestSchemaMetadata(t *testing.T) {
	s := New()
	require.Equal(t, Name, s.Name())
	require.Equal(t, "register", s.OptionKey())
	require.Equal(t, "users", s.Route())
	require.False(t, s.Sequenced())
}
