package storage

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// cursor is a thin wrapper around a native leveldb iterator scoped to a
// single bucket prefix. Keys returned by Key have the prefix trimmed off.
type cursor struct {
	it       iterator.Iterator
	prefix   []byte
	isClosed bool
}

func newCursor(it iterator.Iterator, prefix []byte) *cursor {
	return &cursor{it: it, prefix: prefix}
}

func (c *cursor) First() bool {
	if c.isClosed {
		return false
	}
	return c.it.First()
}

func (c *cursor) Next() bool {
	if c.isClosed {
		return false
	}
	return c.it.Next()
}

func (c *cursor) Key() []byte {
	full := c.it.Key()
	if full == nil {
		return nil
	}
	return bytes.TrimPrefix(full, c.prefix)
}

func (c *cursor) Value() []byte {
	return c.it.Value()
}

func (c *cursor) Error() error {
	return c.it.Error()
}

func (c *cursor) Close() {
	if c.isClosed {
		return
	}
	c.isClosed = true
	c.it.Release()
}

func bucketRange(bucket []byte) *util.Range {
	return util.BytesPrefix(bucket)
}
