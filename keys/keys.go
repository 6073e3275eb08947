// Package keys derives, signs and verifies with the Ed25519 keys that
// identify ledger entities.
//
// A ledger entity is addressed by its 32-byte public key. Operators and test
// tools refer to entities by a human seed; the keypair is derived
// deterministically from SHA-256(seed), so the same seed always names the
// same entity.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const (
	// PubKeySize is the length of an entity public key.
	PubKeySize = ed25519.PublicKeySize

	// SignatureSize is the length of a detached signature.
	SignatureSize = ed25519.SignatureSize
)

// ErrEmptySeed is returned when a keypair is requested for an empty seed.
var ErrEmptySeed = errors.New("seed cannot be empty")

// KeyPair is an Ed25519 keypair derived from a seed.
type KeyPair struct {
	PubKey  ed25519.PublicKey
	PrivKey ed25519.PrivateKey
}

// DeriveKeyPair derives the keypair for seed. The private key seed is the
// SHA-256 digest of the UTF-8 bytes of seed.
func DeriveKeyPair(seed string) (*KeyPair, error) {
	if seed == "" {
		return nil, ErrEmptySeed
	}
	digest := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(digest[:])
	return &KeyPair{
		PubKey:  priv.Public().(ed25519.PublicKey),
		PrivKey: priv,
	}, nil
}

// PubKeyHex returns the hex encoding of the public key.
func (kp *KeyPair) PubKeyHex() string {
	return hex.EncodeToString(kp.PubKey)
}

// Sign returns the detached signature of msg.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid signature of msg by pub.
// Keys and signatures of the wrong length never verify.
func Verify(pub, msg, sig []byte) bool {
	if len(pub) != PubKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// GenerateSeed returns a fresh random seed suitable for DeriveKeyPair.
func GenerateSeed() string {
	return uuid.NewString()
}
