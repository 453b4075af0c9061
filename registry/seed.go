package registry

import (
	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/pkg/errors"
)

var ErrIndexRange = errors.New("key index out of range")

type Seed []byte

// Derive returns the key for a pool index, which becomes the account segment
// of m/44'/784'/index'/0'/0'. Index 0 is the default account of the seed and
// is never handed out.
func (s Seed) Derive(index uint64) (*suikey.KeyPair, error) {
	if index == 0 || index >= suikey.Hard {
		return nil, errors.Wrapf(ErrIndexRange, "%d", index)
	}
	return suikey.KeyPairFromSeed(s, suikey.AccountPath(uint32(index)))
}
