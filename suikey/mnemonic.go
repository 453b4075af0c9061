package suikey

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"
)

// MnemonicError is returned when the word list is rejected by BIP-39
// validation.
type MnemonicError struct {
	Err error
}

func (e *MnemonicError) Error() string { return "invalid mnemonic: " + e.Err.Error() }
func (e *MnemonicError) Unwrap() error { return e.Err }

// SeedFromMnemonic stretches a mnemonic into a 64-byte BIP-39 seed. Words are
// separated by single spaces and both inputs are NFKD normalized first.
//
// Unlike a plain PBKDF2 stretch of the sentence, the words and checksum are
// validated against the English word list. A phrase with a bad checksum
// returns *MnemonicError instead of a seed, and runs of whitespace don't
// change the result.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	words := strings.Fields(norm.NFKD.String(mnemonic))
	sentence := strings.Join(words, " ")
	if _, err := bip39.EntropyFromMnemonic(sentence); err != nil {
		return nil, &MnemonicError{Err: err}
	}
	return bip39.NewSeed(sentence, norm.NFKD.String(passphrase)), nil
}
