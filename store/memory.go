package store

import (
	"io"
	"strings"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing, and for running without any cache directory.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte // only holds items whose writer was closed
}

var (
	// ensure Memory satisfies the Store interface
	_ Store   = &Memory{}
	_ Aborter = &memWriter{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// List returns a channel giving the id for every item in the store.
// Items still being written are not listed.
func (ms *Memory) List() <-chan string {
	c := make(chan string)
	go func() {
		var keys []string
		ms.m.RLock()
		for k := range ms.store {
			keys = append(keys, k)
		}
		ms.m.RUnlock()
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// ListPrefix returns all the key entries which begin with the given prefix.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Open returns a ReadAtCloser and the size of the given blob. Items are only
// visible once the writer creating them has been closed.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotExist
	}
	return &memReader{b: v}, int64(len(v)), nil
}

type memReader struct {
	b []byte
}

func (r *memReader) Close() error { return nil }

func (r *memReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

type memWriter struct {
	parent *Memory
	key    string
	b      []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// Close publishes the item. If another writer published the same key first
// ErrKeyExists is returned and this content is dropped.
func (w *memWriter) Close() error {
	ms := w.parent
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.store[w.key]; ok {
		return ErrKeyExists
	}
	ms.store[w.key] = w.b
	return nil
}

// Abort drops the content. Nothing is published.
func (w *memWriter) Abort() error {
	w.b = nil
	return nil
}

// Create makes a new entry in the store, and returns a writer to save data
// into it.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.RLock()
	_, ok := ms.store[key]
	ms.m.RUnlock()
	if ok {
		return nil, ErrKeyExists
	}
	return &memWriter{parent: ms, key: key}, nil
}

// Delete the given key from the store. It is not an error if the item does
// not exist in the store.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}
