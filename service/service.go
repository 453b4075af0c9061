package service

import (
	"context"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ecadlabs/go-sui-keygen/keypool"
	"github.com/ecadlabs/go-sui-keygen/registry"
	"github.com/ecadlabs/go-sui-keygen/server"
	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

type ProfileConfig interface {
	GetSeed() registry.Seed
	GetTreasury() *suikey.KeyPair
	GetLeaseTime() time.Duration
}

type Profile struct {
	Pool     *keypool.Pool
	Registry *registry.Registry
	Config   ProfileConfig
}

type Service struct {
	Profiles map[string]*Profile
}

func logError(err error) {
	log.Error(err)
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debug(spew.Sdump(err))
	}
}

func (s *Service) profile(name string) (*Profile, error) {
	p, ok := s.Profiles[name]
	if !ok {
		return nil, server.ErrUnknownProfile
	}
	return p, nil
}

// key derives the key for id and checks it against the address from the
// request path. It doesn't check the lease.
func (p *Profile) key(id uint64, address string) (*suikey.KeyPair, error) {
	kp, err := p.Config.GetSeed().Derive(id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(kp.Address(), address) {
		return nil, server.ErrAddressMismatch
	}
	return kp, nil
}

func (s *Service) Pop(ctx context.Context, profile string) (*server.Key, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	index, err := p.Pool.Get(ctx)
	if err != nil {
		logError(err)
		return nil, err
	}
	kp, err := p.Config.GetSeed().Derive(index)
	if err != nil {
		logError(err)
		return nil, err
	}
	log.WithFields(log.Fields{"profile": profile, "address": kp.Address()}).Info("Issued")
	return &server.Key{
		Index:      index,
		Path:       suikey.AccountPath(uint32(index)).String(),
		PrivateKey: kp.PrivateKeyHex(),
		PublicKey:  kp.PublicKeyBase64(),
		Address:    kp.Address(),
	}, nil
}

func (s *Service) Status(ctx context.Context, profile string) (*server.ProfileStatus, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	cnt, err := p.Pool.Count()
	if err != nil {
		logError(err)
		return nil, err
	}
	used, err := p.Registry.UsedCount()
	if err != nil {
		logError(err)
		return nil, err
	}
	status := server.ProfileStatus{
		Count: cnt,
		Used:  used,
	}
	if t := p.Config.GetTreasury(); t != nil {
		status.Treasury = t.Address()
	}
	return &status, nil
}

func (s *Service) Lease(ctx context.Context, profile string) (*server.Lease, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	expires := time.Now().Add(p.Config.GetLeaseTime())
	index, err := p.Pool.Lease(ctx, expires)
	if err != nil {
		logError(err)
		return nil, err
	}
	kp, err := p.Config.GetSeed().Derive(index)
	if err != nil {
		logError(err)
		return nil, err
	}
	return &server.Lease{
		ID:      index,
		Address: kp.Address(),
		Expires: expires,
	}, nil
}

func (s *Service) Pub(ctx context.Context, profile string, id uint64, address string) (*server.PublicKey, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	kp, err := p.key(id, address)
	if err != nil {
		return nil, err
	}
	ok, err := p.Pool.Leased(id)
	if err != nil {
		logError(err)
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(keypool.ErrNotLeased, "key %d", id)
	}
	return &server.PublicKey{
		PublicKey: kp.PublicKeyBase64(),
		Address:   kp.Address(),
	}, nil
}

func (s *Service) Sign(ctx context.Context, profile string, id uint64, address string, r io.Reader) (*server.Signature, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	kp, err := p.key(id, address)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var (
		sig []byte
		n   uint64
	)
	err = p.Pool.WithLease(id, func(tx *bolt.Tx) (err error) {
		if n, err = p.Registry.MarkUsed(tx, id); err != nil {
			return err
		}
		sig = kp.Sign(data)
		return nil
	})
	if err != nil {
		if !errors.Is(err, keypool.ErrNotLeased) {
			logError(err)
		}
		return nil, err
	}
	log.WithFields(log.Fields{"address": kp.Address(), "signatures": n}).Info("Signed")
	return &server.Signature{
		Signature:  hex.EncodeToString(sig),
		Serialized: suikey.SerializedSignature(kp.PublicKey(), sig),
	}, nil
}
