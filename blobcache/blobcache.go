// Package blobcache implements simple byte caches. They are backed by a store,
// so they can be entirely in memory, on disk, or in S3.
//
// Two policies are provided. Unbounded keeps everything forever and never
// evicts. T keeps the total size under a ceiling using an LRU replacement
// policy. While the cached contents are kept in the store, the list recording
// usage information of T is kept only in memory. On startup the items in the
// store are enumerated and taken to populate the list in an undetermined order.
package blobcache

import (
	"container/list"
	"errors"
	"io"
	"sync"

	"github.com/ndlib/imageloader/store"
)

// Cache is the interface shared by all the caches in this package.
//
// It is not an error for an item to not be in the cache: Get returns a nil
// ReadAtCloser in that case. A writer returned by Put which is passed to
// store.Abort leaves nothing in the cache.
type Cache interface {
	Contains(key string) bool
	Get(key string) (store.ReadAtCloser, int64, error)
	Put(key string) (io.WriteCloser, error)
	Delete(key string) error
}

var (
	_ Cache = &T{}
	_ Cache = &Unbounded{}
	_ Cache = EmptyCache{}
)

// T is a size bounded cache with an LRU eviction policy.
type T struct {
	// this is the place where cached items are stored
	s store.Store

	m sync.Mutex // protects everything below

	// total size used to store items in cache, including space reserved by
	// writers still in progress.
	size int64

	maxSize int64 // The maximum amount of space we may use

	// front of list is MRU, tail is LRU.
	lru   *list.List
	index map[string]*list.Element
}

type entry struct {
	id   string
	size int64
}

var (
	ErrCacheFull = errors.New("Cache is full and no more items can be removed")
)

// NewLRU creates and initializes a new cache structure. The given store
// may already have items in it. Call Scan() either inline or in a goroutine
// to scan the store and add the items inside it to the LRU list.
func NewLRU(s store.Store, maxSize int64) *T {
	return &T{
		s:       s,
		maxSize: maxSize,
		lru:     list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Scan enumerates the items in the given store and adds them to the cache.
// Items that do not fit are deleted from the store. Blocks until it is
// completely finished.
func (t *T) Scan() {
	for key := range t.s.List() {
		if t.Contains(key) {
			continue
		}
		rc, size, err := t.s.Open(key)
		if err != nil {
			continue
		}
		rc.Close()
		err = t.reserve(size)
		if err != nil {
			// this item is too big for the cache.
			t.s.Delete(key)
			continue
		}
		t.link(key, size)
	}
}

// Contains returns true if the given item is in the cache. It does not
// update the LRU status, and does not guarantee the item will be in the
// cache when Get() is called.
func (t *T) Contains(id string) bool {
	t.m.Lock()
	_, ok := t.index[id]
	t.m.Unlock()
	return ok
}

// Get returns a reader for the given item. The LRU list is updated. If the
// item is not in the cache nil is returned for the ReadAtCloser.
func (t *T) Get(id string) (store.ReadAtCloser, int64, error) {
	t.m.Lock()
	e, ok := t.index[id]
	if ok {
		t.lru.MoveToFront(e)
	}
	t.m.Unlock()
	if !ok {
		return nil, 0, nil
	}
	rac, size, err := t.s.Open(id)
	if err == store.ErrNotExist {
		// someone removed it behind our back
		t.unlink(id)
		return nil, 0, nil
	}
	return rac, size, err
}

// Put returns a WriteCloser which saves writes to it in the cache under the
// provided id key. Items are evicted from the cache as content is written to
// the Writer. The item is not formally added to the cache until the Writer is
// closed. If any Write fails the item is abandoned when the Writer is closed.
//
// Once an item is in the cache, Puts for it will return store.ErrKeyExists
// (until the item is evicted.)
func (t *T) Put(id string) (io.WriteCloser, error) {
	w, err := t.s.Create(id)
	if err != nil {
		return nil, err
	}
	return &writer{t: t, key: id, w: w}, nil
}

// Delete removes the given item from the cache and the backing store.
func (t *T) Delete(id string) error {
	if e := t.unlink(id); e != nil {
		t.m.Lock()
		t.size -= e.size
		t.m.Unlock()
	}
	return t.s.Delete(id)
}

// Size returns the number of bytes currently used or reserved.
func (t *T) Size() int64 {
	t.m.Lock()
	defer t.m.Unlock()
	return t.size
}

// MaxSize returns the ceiling given to NewLRU.
func (t *T) MaxSize() int64 {
	return t.maxSize
}

// link adds id to the front of the LRU list. Its size must already be
// reserved.
func (t *T) link(id string, size int64) {
	t.m.Lock()
	defer t.m.Unlock()
	if e, ok := t.index[id]; ok {
		// a racing writer got here first. keep the newer size.
		t.size -= e.Value.(*entry).size
		t.lru.Remove(e)
	}
	t.index[id] = t.lru.PushFront(&entry{id: id, size: size})
}

// unlink removes id from the LRU list without touching the store or the
// size accounting. It returns the removed entry, if any.
func (t *T) unlink(id string) *entry {
	t.m.Lock()
	defer t.m.Unlock()
	e, ok := t.index[id]
	if !ok {
		return nil
	}
	delete(t.index, id)
	return t.lru.Remove(e).(*entry)
}

// reserve space for the passed in size, evicting items if necessary to stay
// under maxSize. Size can be negative to cancel a previous reservation.
// Nothing is reserved if there is an error.
func (t *T) reserve(size int64) error {
	t.m.Lock()
	defer t.m.Unlock()

	t.size += size
	for t.size > t.maxSize {
		// LRU eviction
		e := t.lru.Back()
		if e == nil {
			t.size -= size
			return ErrCacheFull
		}
		v := t.lru.Remove(e).(*entry)
		delete(t.index, v.id)
		err := t.s.Delete(v.id)
		if err != nil {
			t.size -= size
			return err
		}
		t.size -= v.size
	}
	return nil
}

// release gives back space reserved for an item which was never linked.
func (t *T) release(size int64) {
	t.m.Lock()
	t.size -= size
	t.m.Unlock()
}
