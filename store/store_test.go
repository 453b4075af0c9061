package store_test

import (
	"path/filepath"
	"testing"

	"github.com/ecadlabs/go-sui-keygen/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

type value struct {
	Name string
	N    uint64
}

func TestBucket(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte("root"))
		if err != nil {
			return err
		}
		raw, err := root.CreateBucketIfNotExists([]byte("sub"))
		if err != nil {
			return err
		}
		b := store.Bucket{Bucket: raw}
		// inserted out of order, read back in key order
		for _, k := range []uint64{300, 2, 1 << 40} {
			if err := b.Put(&k, &value{Name: "v", N: k}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		b := store.Nested(tx, []byte("root"), []byte("sub"))
		require.NotNil(t, b.Bucket)

		var v value
		ok, err := b.Get(uint64(300), &v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, value{Name: "v", N: 300}, v)

		ok, err = b.Get(uint64(301), &v)
		require.NoError(t, err)
		assert.False(t, ok)

		var (
			k    uint64
			keys []uint64
		)
		c := b.Cursor()
		for err = c.First(&k, &v); err == nil; err = c.Next(&k, &v) {
			keys = append(keys, k)
			assert.Equal(t, k, v.N)
		}
		assert.ErrorIs(t, err, store.ErrEOF)
		assert.Equal(t, []uint64{2, 300, 1 << 40}, keys)

		assert.Nil(t, store.Nested(tx, []byte("root"), []byte("missing"), []byte("deeper")).Bucket)
		assert.Nil(t, store.Nested(tx, []byte("nothing")).Bucket)
		return nil
	})
	require.NoError(t, err)
}

func TestCursorResetsValue(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		raw, err := tx.CreateBucketIfNotExists([]byte("root"))
		if err != nil {
			return err
		}
		b := store.Bucket{Bucket: raw}
		if err := b.Put(uint64(1), &value{Name: "full", N: 5}); err != nil {
			return err
		}
		return b.Put(uint64(2), &value{})
	})
	require.NoError(t, err)

	var got []value
	err = db.View(func(tx *bolt.Tx) error {
		var (
			k   uint64
			v   value
			err error
		)
		c := store.Nested(tx, []byte("root")).Cursor()
		for err = c.First(&k, &v); err == nil; err = c.Next(&k, &v) {
			got = append(got, v)
		}
		if err != store.ErrEOF {
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []value{{Name: "full", N: 5}, {}}, got)
}
