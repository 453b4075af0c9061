// Package suikey derives Sui Ed25519 identities from BIP-39 mnemonics along
// hardened SLIP-10 paths and implements Sui addresses and signing.
package suikey

// KeyPairFromSeed derives the key pair at path from a raw seed. A nil path
// means DefaultPath, an empty non-nil path selects the master key.
func KeyPairFromSeed(seed []byte, path Path) (*KeyPair, error) {
	if path == nil {
		path = DefaultPath()
	}
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return NewKeyPair(MasterKey(seed).Walk(path).Key), nil
}

// DeriveKeyPair is GetKeyPair with a BIP-39 passphrase.
func DeriveKeyPair(mnemonic, passphrase string, path Path) (*KeyPair, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return KeyPairFromSeed(seed, path)
}

func GetKeyPair(mnemonic string, path Path) (*KeyPair, error) {
	return DeriveKeyPair(mnemonic, "", path)
}

func GetKeyPairByPrivateKey(privateKeyHex string) (*KeyPair, error) {
	return KeyPairFromPrivateKeyHex(privateKeyHex)
}

// GetSuiAddress derives the address for mnemonic at path. Use
// (*KeyPair).Address when the key pair is already at hand.
func GetSuiAddress(mnemonic string, path Path) (string, error) {
	kp, err := GetKeyPair(mnemonic, path)
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}
