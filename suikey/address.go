package suikey

import (
	"crypto/ed25519"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Ed25519Flag identifies the Ed25519 scheme in addresses and serialized
// signatures.
const Ed25519Flag = 0x00

// addressHexLen equals the full BLAKE2b-256 digest in hex. Changing the digest
// size must not turn this into an actual cut.
const addressHexLen = 2 * blake2b.Size256

// Address returns 0x followed by the lowercase hex BLAKE2b-256 of
// flag || publicKey.
func Address(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+ed25519.PublicKeySize)
	buf = append(buf, Ed25519Flag)
	buf = append(buf, pub...)
	digest := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(digest[:])[:addressHexLen]
}
