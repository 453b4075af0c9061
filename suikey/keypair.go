package suikey

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeError is returned for a malformed private key string. It never
// carries the input itself.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed private key: %s: %v", e.Reason, e.Err)
	}
	return "malformed private key: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// KeyPair is an Ed25519 key pair. The public half is always computed from the
// private seed.
type KeyPair struct {
	priv ed25519.PrivateKey
}

// NewKeyPair treats keyMaterial as an Ed25519 seed.
func NewKeyPair(keyMaterial [32]byte) *KeyPair {
	return &KeyPair{priv: ed25519.NewKeyFromSeed(keyMaterial[:])}
}

// KeyPairFromPrivateKeyHex imports a raw 32-byte private key written as 64
// hex characters with an optional 0x prefix.
func KeyPairFromPrivateKeyHex(s string) (*KeyPair, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != hex.EncodedLen(ed25519.SeedSize) {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected %d hex characters, got %d", hex.EncodedLen(ed25519.SeedSize), len(s))}
	}
	var seed [32]byte
	if _, err := hex.Decode(seed[:], []byte(s)); err != nil {
		return nil, &DecodeError{Reason: "invalid hex", Err: err}
	}
	return NewKeyPair(seed), nil
}

// PrivateKey returns the 32-byte private seed.
func (k *KeyPair) PrivateKey() []byte { return k.priv.Seed() }

func (k *KeyPair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// PrivateKeyHex is the 0x prefixed form accepted by KeyPairFromPrivateKeyHex.
func (k *KeyPair) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(k.priv.Seed())
}

// PublicKeyBase64 is the flagged public key as Sui tooling prints it.
func (k *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(append([]byte{Ed25519Flag}, k.PublicKey()...))
}

func (k *KeyPair) Address() string { return Address(k.PublicKey()) }

func (k *KeyPair) Sign(data []byte) []byte { return Sign(k, data) }

func (k *KeyPair) Equal(other *KeyPair) bool {
	return other != nil && k.priv.Equal(other.priv)
}
