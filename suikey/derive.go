package suikey

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
)

const (
	masterSecret = "ed25519 seed"

	// Hard is the offset added to every path index. Only hardened derivation
	// exists for Ed25519.
	Hard = 0x80000000
)

// ExtendedKey is a node of the derivation tree: 32 bytes of key material and
// the 32-byte chain code used to derive its children.
type ExtendedKey struct {
	Key       [32]byte
	ChainCode [32]byte
}

// stretch is the single HMAC-SHA512 step shared by the master key and every
// child: the output is split into key material and chain code.
func stretch(secret, data []byte) ExtendedKey {
	mac := hmac.New(sha512.New, secret)
	mac.Write(data)
	sum := mac.Sum(nil)

	var out ExtendedKey
	copy(out.Key[:], sum[:32])
	copy(out.ChainCode[:], sum[32:])
	return out
}

// MasterKey returns the root node for a seed of any length.
func MasterKey(seed []byte) ExtendedKey {
	return stretch([]byte(masterSecret), seed)
}

// Child derives the hardened child at index. The index must be below Hard,
// see Path.Validate.
func (k ExtendedKey) Child(index uint32) ExtendedKey {
	// 0x00 || key || BE32(index + 2^31)
	var data [1 + 32 + 4]byte
	copy(data[1:33], k.Key[:])
	binary.BigEndian.PutUint32(data[33:], Hard+index)
	return stretch(k.ChainCode[:], data[:])
}

// Walk applies Child for each path segment in order. An empty path returns k.
func (k ExtendedKey) Walk(path Path) ExtendedKey {
	for _, index := range path {
		k = k.Child(index)
	}
	return k
}
