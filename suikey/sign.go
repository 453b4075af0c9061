package suikey

import (
	"crypto/ed25519"
	"encoding/base64"

	"golang.org/x/crypto/blake2b"
)

func digest(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// Sign signs the BLAKE2b-256 digest of data, not data itself.
func Sign(kp *KeyPair, data []byte) []byte {
	return ed25519.Sign(kp.priv, digest(data))
}

// Verify checks a signature produced by Sign.
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, digest(data), sig)
}

// SerializedSignature encodes flag || signature || public key in base64, the
// form Sui nodes accept alongside transaction bytes.
func SerializedSignature(pub ed25519.PublicKey, sig []byte) string {
	buf := make([]byte, 0, 1+len(sig)+len(pub))
	buf = append(buf, Ed25519Flag)
	buf = append(buf, sig...)
	buf = append(buf, pub...)
	return base64.StdEncoding.EncodeToString(buf)
}
