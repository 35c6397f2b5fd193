package blobcache

import (
	"io"

	"github.com/ndlib/imageloader/store"
)

// Unbounded is a cache which keeps every item it is given for as long as the
// backing store keeps it. There is no eviction, so the space used grows
// without bound. This is the default for the image disk cache.
type Unbounded struct {
	s store.Store
}

// NewUnbounded returns a cache keeping its items in s.
func NewUnbounded(s store.Store) *Unbounded {
	return &Unbounded{s: s}
}

// Contains returns true if the store has the given key.
func (u *Unbounded) Contains(id string) bool {
	rac, _, err := u.s.Open(id)
	if err != nil {
		return false
	}
	rac.Close()
	return true
}

// Get returns a reader for the given item, or a nil reader if the item is not
// in the store.
func (u *Unbounded) Get(id string) (store.ReadAtCloser, int64, error) {
	rac, size, err := u.s.Open(id)
	if err == store.ErrNotExist {
		return nil, 0, nil
	}
	return rac, size, err
}

// Put returns a writer saving into the store. The item appears once the
// writer is closed. If the item already exists store.ErrKeyExists is returned.
func (u *Unbounded) Put(id string) (io.WriteCloser, error) {
	return u.s.Create(id)
}

// Delete removes the item from the store.
func (u *Unbounded) Delete(id string) error {
	return u.s.Delete(id)
}
