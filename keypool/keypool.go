package keypool

import (
	"context"
	"time"

	"github.com/ecadlabs/go-sui-keygen/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Registry is told about fresh indices and decides whether an expired lease
// goes back to the pool. Both calls run inside the pool's write transaction.
type Registry interface {
	Prepare(ctx context.Context, tx *bolt.Tx, keys []uint64) error
	IsUsed(ctx context.Context, tx *bolt.Tx, key uint64) (bool, error)
	Address(key uint64) string
}

type Config interface {
	GetBucket() string
	GetBufferLength() int
	GetBufferThreshold() int
	GetTimeout() time.Duration
}

var (
	poolBucket  = []byte("keys")
	leaseBucket = []byte("lease")
)

var ErrNotLeased = errors.New("key is not leased")

// Pool hands out account indices. All database access happens on the loop
// goroutine.
type Pool struct {
	db       *bolt.DB
	registry Registry
	config   Config

	lease chan opLease
	get   chan opGet

	timeout *time.Timer
	stop    chan struct{}
	done    chan struct{}
}

type opLease struct {
	deadline time.Time
	key      chan<- uint64
	errCh    chan<- error
}

type opGet struct {
	key   chan<- uint64
	errCh chan<- error
}

type lease struct {
	KeyIndex uint64
	Deadline time.Time
}

func New(db *bolt.DB, config Config, registry Registry) (*Pool, error) {
	timeout := time.NewTimer(0)
	if !timeout.Stop() {
		select {
		case <-timeout.C:
		default:
		}
	}
	p := &Pool{
		config:   config,
		db:       db,
		registry: registry,
		lease:    make(chan opLease),
		get:      make(chan opGet),
		timeout:  timeout,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}

	err := p.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(p.config.GetBucket()))
		if err != nil {
			return err
		}
		if _, err := root.CreateBucketIfNotExists(poolBucket); err != nil {
			return err
		}
		if _, err := root.CreateBucketIfNotExists(leaseBucket); err != nil {
			return err
		}
		return p.schedule(tx)
	})
	if err != nil {
		return nil, err
	}

	go p.loop()
	return p, nil
}

func (p *Pool) bucket(tx *bolt.Tx, name []byte) store.Bucket {
	return store.Nested(tx, []byte(p.config.GetBucket()), name)
}

func (p *Pool) opContext() (context.Context, context.CancelFunc) {
	if p.config.GetTimeout() != 0 {
		return context.WithTimeout(context.Background(), p.config.GetTimeout())
	}
	return context.WithCancel(context.Background())
}

// Get pops a fresh index for good.
func (p *Pool) Get(ctx context.Context) (uint64, error) {
	key := make(chan uint64, 1)
	errCh := make(chan error, 1)
	select {
	case p.get <- opGet{key: key, errCh: errCh}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case idx := <-key:
		return idx, nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Lease pops a fresh index until deadline. After that the index returns to
// the pool unless the registry reports it as used.
func (p *Pool) Lease(ctx context.Context, deadline time.Time) (uint64, error) {
	key := make(chan uint64, 1)
	errCh := make(chan error, 1)
	select {
	case p.lease <- opLease{key: key, errCh: errCh, deadline: deadline}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case idx := <-key:
		return idx, nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Count returns the number of buffered indices.
func (p *Pool) Count() (int, error) {
	var cnt int
	err := p.db.View(func(tx *bolt.Tx) error {
		cnt = p.bucket(tx, poolBucket).Stats().KeyN
		return nil
	})
	return cnt, err
}

func (p *Pool) Stop(ctx context.Context) error {
	select {
	case p.stop <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// active reports whether key is held by a lease that ends after now.
func (p *Pool) active(tx *bolt.Tx, key uint64, now time.Time) (bool, error) {
	c := p.bucket(tx, leaseBucket).Cursor()
	var (
		k   uint64
		v   lease
		err error
	)
	for err = c.First(&k, &v); err == nil; err = c.Next(&k, &v) {
		if v.KeyIndex == key && v.Deadline.After(now) {
			return true, nil
		}
	}
	if err != store.ErrEOF {
		return false, err
	}
	return false, nil
}

// Leased reports whether key is currently leased.
func (p *Pool) Leased(key uint64) (bool, error) {
	var ok bool
	err := p.db.View(func(tx *bolt.Tx) (err error) {
		ok, err = p.active(tx, key, time.Now())
		return err
	})
	return ok, err
}

// WithLease runs fn inside a write transaction if key is currently leased
// and returns ErrNotLeased otherwise. The lease can't be expired or recycled
// while fn runs.
func (p *Pool) WithLease(key uint64, fn func(tx *bolt.Tx) error) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		ok, err := p.active(tx, key, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrNotLeased, "key %d", key)
		}
		return fn(tx)
	})
}

// pop removes the first buffered index, refilling first if needed.
func (p *Pool) pop(tx *bolt.Tx) (uint64, error) {
	if err := p.fill(tx); err != nil {
		return 0, err
	}
	c := p.bucket(tx, poolBucket).Cursor()
	var k, keyIndex uint64
	if err := c.First(&k, &keyIndex); err != nil {
		if err == store.ErrEOF {
			panic("empty bucket") // shouldn't happen
		}
		return 0, err
	}
	return keyIndex, c.Delete()
}

func (p *Pool) loop() {
	for {
		select {
		case req := <-p.get:
			var keyIndex uint64
			err := p.db.Update(func(tx *bolt.Tx) (err error) {
				keyIndex, err = p.pop(tx)
				return err
			})
			if err != nil {
				req.errCh <- err
				break
			}
			req.key <- keyIndex

		case req := <-p.lease:
			var keyIndex uint64
			err := p.db.Update(func(tx *bolt.Tx) error {
				var err error
				if keyIndex, err = p.pop(tx); err != nil {
					return err
				}
				leaseBkt := p.bucket(tx, leaseBucket)
				k, _ := leaseBkt.NextSequence()
				rec := lease{
					KeyIndex: keyIndex,
					Deadline: req.deadline,
				}
				if err := leaseBkt.Put(&k, &rec); err != nil {
					return err
				}
				return p.schedule(tx)
			})
			if err != nil {
				req.errCh <- err
				break
			}
			req.key <- keyIndex

		case now := <-p.timeout.C:
			if err := p.db.Update(func(tx *bolt.Tx) error { return p.expire(tx, now) }); err != nil {
				log.Error(err)
			}

		case <-p.stop:
			p.done <- struct{}{}
			return
		}
	}
}

// expire settles leases past their deadline.
func (p *Pool) expire(tx *bolt.Tx, now time.Time) error {
	poolBkt := p.bucket(tx, poolBucket)
	c := p.bucket(tx, leaseBucket).Cursor()
	var (
		k   uint64
		v   lease
		err error
	)
	for err = c.First(&k, &v); err == nil; err = c.Next(&k, &v) {
		if v.Deadline.After(now) {
			continue
		}
		ctx, cancel := p.opContext()
		used, err := p.registry.IsUsed(ctx, tx, v.KeyIndex)
		cancel()
		if err != nil {
			return err
		}
		l := log.WithField("address", p.registry.Address(v.KeyIndex))
		if used {
			l.Info("Retiring")
		} else {
			k, _ := poolBkt.NextSequence()
			// put back
			l.Info("Recycling")
			if err := poolBkt.Put(&k, &v.KeyIndex); err != nil {
				return err
			}
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	if err != nil && err != store.ErrEOF {
		return err
	}
	return p.schedule(tx)
}

func (p *Pool) schedule(tx *bolt.Tx) error {
	c := p.bucket(tx, leaseBucket).Cursor()
	var (
		i            int
		nextDeadline time.Time
		k            uint64
		v            lease
		err          error
	)
	for err = c.First(&k, &v); err == nil; err = c.Next(&k, &v) {
		if i == 0 || v.Deadline.Before(nextDeadline) {
			nextDeadline = v.Deadline
		}
		i++
	}
	if err != nil && err != store.ErrEOF {
		return err
	}
	if i != 0 {
		if !p.timeout.Stop() {
			select {
			case <-p.timeout.C:
			default:
			}
		}
		p.timeout.Reset(time.Until(nextDeadline))
	}
	return nil
}

func (p *Pool) fill(tx *bolt.Tx) error {
	b := p.bucket(tx, poolBucket)
	n := b.Stats().KeyN
	if n > p.config.GetBufferThreshold() {
		return nil
	}
	keys := make([]uint64, p.config.GetBufferLength()-n)
	for i := range keys {
		k, _ := b.NextSequence()
		keys[i] = k
		if err := b.Put(&k, &k); err != nil {
			return err
		}
	}
	ctx, cancel := p.opContext()
	defer cancel()
	return p.registry.Prepare(ctx, tx, keys)
}
