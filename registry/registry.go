package registry

import (
	"context"
	"time"

	"github.com/ecadlabs/go-sui-keygen/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

type Config interface {
	GetSeed() Seed
	GetBucket() string
}

var recordBucket = []byte("registry")

// Record is what the registry keeps per derived key. Private material is
// never stored.
type Record struct {
	Address    string
	Signatures uint64
	Created    time.Time
	LastUsed   time.Time
}

// Registry records the address of every key handed to the pool and counts
// signatures made with it.
type Registry struct {
	db  *bolt.DB
	cfg Config
}

func New(db *bolt.DB, cfg Config) *Registry {
	return &Registry{
		db:  db,
		cfg: cfg,
	}
}

func (r *Registry) writable(tx *bolt.Tx) (store.Bucket, error) {
	root, err := tx.CreateBucketIfNotExists([]byte(r.cfg.GetBucket()))
	if err != nil {
		return store.Bucket{}, err
	}
	b, err := root.CreateBucketIfNotExists(recordBucket)
	if err != nil {
		return store.Bucket{}, err
	}
	return store.Bucket{Bucket: b}, nil
}

// Prepare derives and records the address of each fresh key.
func (r *Registry) Prepare(ctx context.Context, tx *bolt.Tx, keys []uint64) error {
	b, err := r.writable(tx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		kp, err := r.cfg.GetSeed().Derive(k)
		if err != nil {
			return errors.Wrapf(err, "key %d", k)
		}
		rec := Record{
			Address: kp.Address(),
			Created: now,
		}
		log.WithFields(log.Fields{"index": k, "address": rec.Address}).Info("Registering")
		if err := b.Put(&k, &rec); err != nil {
			return err
		}
	}
	return nil
}

// IsUsed reports whether the key has signed anything.
func (r *Registry) IsUsed(ctx context.Context, tx *bolt.Tx, key uint64) (bool, error) {
	b := store.Nested(tx, []byte(r.cfg.GetBucket()), recordBucket)
	if b.Bucket == nil {
		return false, nil
	}
	var rec Record
	ok, err := b.Get(&key, &rec)
	if err != nil {
		return false, err
	}
	return ok && rec.Signatures != 0, nil
}

// MarkUsed counts a signature made with key and returns the new total. It
// runs inside the caller's write transaction.
func (r *Registry) MarkUsed(tx *bolt.Tx, key uint64) (uint64, error) {
	b, err := r.writable(tx)
	if err != nil {
		return 0, err
	}
	var rec Record
	ok, err := b.Get(&key, &rec)
	if err != nil {
		return 0, err
	}
	if !ok {
		// leased before the registry existed
		kp, err := r.cfg.GetSeed().Derive(key)
		if err != nil {
			return 0, err
		}
		rec = Record{Address: kp.Address(), Created: time.Now()}
	}
	rec.Signatures++
	rec.LastUsed = time.Now()
	return rec.Signatures, b.Put(&key, &rec)
}

// Lookup returns the stored record or nil.
func (r *Registry) Lookup(key uint64) (*Record, error) {
	var (
		rec Record
		ok  bool
	)
	err := r.db.View(func(tx *bolt.Tx) error {
		b := store.Nested(tx, []byte(r.cfg.GetBucket()), recordBucket)
		if b.Bucket == nil {
			return nil
		}
		var err error
		ok, err = b.Get(&key, &rec)
		return err
	})
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// UsedCount returns the number of keys that signed at least once.
func (r *Registry) UsedCount() (int, error) {
	var n int
	err := r.db.View(func(tx *bolt.Tx) error {
		b := store.Nested(tx, []byte(r.cfg.GetBucket()), recordBucket)
		if b.Bucket == nil {
			return nil
		}
		var (
			k   uint64
			rec Record
			err error
		)
		c := b.Cursor()
		for err = c.First(&k, &rec); err == nil; err = c.Next(&k, &rec) {
			if rec.Signatures != 0 {
				n++
			}
		}
		if err != store.ErrEOF {
			return err
		}
		return nil
	})
	return n, err
}

// Address derives the address for logging; it is empty for an invalid index.
func (r *Registry) Address(key uint64) string {
	kp, err := r.cfg.GetSeed().Derive(key)
	if err != nil {
		return ""
	}
	return kp.Address()
}
