package config

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ecadlabs/go-sui-keygen/registry"
	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultLeaseTime    = 10 * time.Minute
	defaultBufferLength = 10
)

type profileConfig struct {
	Mnemonic        string        `yaml:"mnemonic"`
	MnemonicFile    string        `yaml:"mnemonic-file"`
	Passphrase      string        `yaml:"passphrase"`
	Seed            string        `yaml:"seed"`
	SeedFile        string        `yaml:"seed-file"`
	PrivateKey      string        `yaml:"private-key"`
	PrivateKeyFile  string        `yaml:"private-key-file"`
	LeaseTime       time.Duration `yaml:"lease-time"`
	BufferLength    int           `yaml:"buffer-length"`
	BufferThreshold int           `yaml:"buffer-threshold"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ProfileConfig is one named key source. Keys are derived from either a
// mnemonic or a raw hex seed; the optional private key is a standalone
// treasury key reported in the status.
type ProfileConfig struct {
	*profileConfig
	name     string
	seed     registry.Seed
	treasury *suikey.KeyPair
}

func (p *ProfileConfig) GetSeed() registry.Seed       { return p.seed }
func (p *ProfileConfig) GetTreasury() *suikey.KeyPair { return p.treasury }
func (p *ProfileConfig) GetLeaseTime() time.Duration  { return p.LeaseTime }
func (p *ProfileConfig) GetBucket() string            { return p.name }
func (p *ProfileConfig) GetBufferLength() int         { return p.BufferLength }
func (p *ProfileConfig) GetBufferThreshold() int      { return p.BufferThreshold }
func (p *ProfileConfig) GetTimeout() time.Duration    { return p.Timeout }

type Config map[string]*ProfileConfig

// secret picks the environment variable, then the inline value, then the
// file. It returns nil if none is set.
func secret(env, inline, file string) ([]byte, error) {
	if v := os.Getenv(env); v != "" {
		return []byte(v), nil
	}
	if inline != "" {
		return []byte(inline), nil
	}
	if file != "" {
		return os.ReadFile(file)
	}
	return nil, nil
}

func (p *ProfileConfig) init(envPrefix string) error {
	if p.LeaseTime == 0 {
		p.LeaseTime = defaultLeaseTime
	}
	if p.BufferLength == 0 {
		p.BufferLength = defaultBufferLength
	}
	if p.BufferThreshold < 0 || p.BufferThreshold >= p.BufferLength {
		return errors.Errorf("buffer-threshold must be in [0, %d)", p.BufferLength)
	}

	mnemonic, err := secret(envPrefix+"_MNEMONIC", p.Mnemonic, p.MnemonicFile)
	if err != nil {
		return err
	}
	seedData, err := secret(envPrefix+"_SEED", p.Seed, p.SeedFile)
	if err != nil {
		return err
	}
	switch {
	case mnemonic != nil && seedData != nil:
		return errors.New("both mnemonic and seed are set")
	case mnemonic != nil:
		seed, err := suikey.SeedFromMnemonic(string(mnemonic), p.Passphrase)
		if err != nil {
			return err
		}
		p.seed = seed
	case seedData != nil:
		seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(seedData)), "0x"))
		if err != nil {
			return errors.Wrap(err, "seed")
		}
		p.seed = seed
	default:
		return errors.New("mnemonic or seed is required")
	}

	privData, err := secret(envPrefix+"_PRIVATE_KEY", p.PrivateKey, p.PrivateKeyFile)
	if err != nil {
		return err
	}
	if privData != nil {
		if p.treasury, err = suikey.KeyPairFromPrivateKeyHex(strings.TrimSpace(string(privData))); err != nil {
			return err
		}
	}
	return nil
}

// New reads a YAML map of profile name to settings. Secrets can be overridden
// with <PROFILE>_MNEMONIC, <PROFILE>_SEED and <PROFILE>_PRIVATE_KEY.
func New(rd io.Reader) (Config, error) {
	var raw map[string]*profileConfig
	if err := yaml.NewDecoder(rd).Decode(&raw); err != nil {
		return nil, err
	}
	out := make(Config, len(raw))
	for name, data := range raw {
		if data == nil {
			data = &profileConfig{}
		}
		p := &ProfileConfig{
			profileConfig: data,
			name:          name,
		}
		envPrefix := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if err := p.init(envPrefix); err != nil {
			return nil, errors.Wrap(err, name)
		}
		out[name] = p
	}
	return out, nil
}
