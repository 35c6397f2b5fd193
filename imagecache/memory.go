package imagecache

import (
	"image"
	"sync"

	"github.com/golang/groupcache/lru"
)

// Memory is the in-process image cache. It is goroutine safe. When two
// goroutines Put the same key the last one wins.
type Memory struct {
	m          sync.Mutex
	maxEntries int
	c          *lru.Cache
}

// NewMemory returns an empty memory cache. If maxEntries is 0 the cache is
// unbounded and entries live until the process exits. Otherwise the least
// recently used entries are dropped to keep at most maxEntries images.
func NewMemory(maxEntries int) *Memory {
	return &Memory{
		maxEntries: maxEntries,
		c:          lru.New(maxEntries),
	}
}

// Get returns the image stored for src, if any.
func (m *Memory) Get(src string) (image.Image, bool) {
	m.m.Lock()
	defer m.m.Unlock()
	v, ok := m.c.Get(src)
	if !ok {
		return nil, false
	}
	return v.(image.Image), true
}

// Put stores img under src, replacing anything already there.
func (m *Memory) Put(src string, img image.Image) {
	if img == nil {
		return
	}
	m.m.Lock()
	m.c.Add(src, img)
	m.m.Unlock()
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.m.Lock()
	m.c = lru.New(m.maxEntries)
	m.m.Unlock()
}

// Len returns the number of images in the cache.
func (m *Memory) Len() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.c.Len()
}
