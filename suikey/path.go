package suikey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	Purpose  = 44
	CoinType = 784
)

var defaultPath = [...]uint32{Purpose, CoinType, 0, 0, 0}

var ErrInvalidPath = errors.New("invalid derivation path")

// Path is a list of unhardened indices. Each one is hardened during
// derivation, so m/44'/784'/0'/0'/0' is Path{44, 784, 0, 0, 0}.
type Path []uint32

// DefaultPath returns a fresh copy of m/44'/784'/0'/0'/0'.
func DefaultPath() Path {
	p := defaultPath
	return p[:]
}

// AccountPath returns m/44'/784'/account'/0'/0'.
func AccountPath(account uint32) Path {
	p := defaultPath
	p[2] = account
	return p[:]
}

func (p Path) Validate() error {
	for i, index := range p {
		if index >= Hard {
			return errors.Wrapf(ErrInvalidPath, "segment %d: index %d does not fit 31 bits", i, index)
		}
	}
	return nil
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range p {
		fmt.Fprintf(&b, "/%d'", index)
	}
	return b.String()
}

// ParsePath parses the m/44'/784'/0'/0'/0' notation. The h and H suffixes are
// accepted in place of the apostrophe. Unhardened segments are rejected.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if parts[0] != "m" {
		return nil, errors.Wrapf(ErrInvalidPath, "%q: missing m prefix", s)
	}
	out := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		n := len(part)
		if n < 2 || (part[n-1] != '\'' && part[n-1] != 'h' && part[n-1] != 'H') {
			return nil, errors.Wrapf(ErrInvalidPath, "%q: segment %q is not hardened", s, part)
		}
		v, err := strconv.ParseUint(part[:n-1], 10, 31)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPath, "%q: segment %q: %v", s, part, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
