// Package store wraps bbolt buckets with big-endian binary keys and gob
// encoded values.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"reflect"

	bolt "go.etcd.io/bbolt"
)

var ErrEOF = errors.New("EOF")

// Key encodes a fixed size key, big-endian so that cursor order matches
// numeric order.
func Key(key any) ([]byte, error) {
	var k bytes.Buffer
	if err := binary.Write(&k, binary.BigEndian, key); err != nil {
		return nil, err
	}
	return k.Bytes(), nil
}

// gob skips zero fields, so out is cleared before decoding into it.
func decodeValue(v []byte, out any) error {
	if rv := reflect.ValueOf(out); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().SetZero()
	}
	return gob.NewDecoder(bytes.NewReader(v)).Decode(out)
}

func decode(k, v []byte, key, val any) error {
	if k == nil {
		return ErrEOF
	}
	if err := binary.Read(bytes.NewReader(k), binary.BigEndian, key); err != nil {
		return err
	}
	return decodeValue(v, val)
}

type Bucket struct {
	*bolt.Bucket
}

// Nested returns the sub-bucket path under the root, or a nil Bucket if any
// level is missing.
func Nested(tx *bolt.Tx, root []byte, path ...[]byte) Bucket {
	b := tx.Bucket(root)
	for _, name := range path {
		if b == nil {
			break
		}
		b = b.Bucket(name)
	}
	return Bucket{b}
}

func (b Bucket) Get(key any, out any) (bool, error) {
	k, err := Key(key)
	if err != nil {
		return false, err
	}
	v := b.Bucket.Get(k)
	if v == nil {
		return false, nil
	}
	return true, decodeValue(v, out)
}

func (b Bucket) Put(key, value any) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return err
	}
	return b.Bucket.Put(k, buf.Bytes())
}

func (b Bucket) Cursor() *Cursor {
	return &Cursor{Cursor: b.Bucket.Cursor()}
}

type Cursor struct {
	*bolt.Cursor
}

// First and Next return ErrEOF past the last item.
func (c *Cursor) First(key, val any) error {
	k, v := c.Cursor.First()
	return decode(k, v, key, val)
}

func (c *Cursor) Next(key, val any) error {
	k, v := c.Cursor.Next()
	return decode(k, v, key, val)
}
