package blobcache

import (
	"io"

	"github.com/ndlib/imageloader/store"
)

// EmptyCache is the disk tier when caching to disk is turned off. Lookups
// always miss and anything put into it is thrown away.
type EmptyCache struct{}

func (EmptyCache) Contains(key string) bool { return false }

func (EmptyCache) Get(key string) (store.ReadAtCloser, int64, error) {
	return nil, 0, nil
}

// Put accepts the whole item and drops it.
func (EmptyCache) Put(key string) (io.WriteCloser, error) {
	return sink{}, nil
}

func (EmptyCache) Delete(key string) error { return nil }

// sink swallows writes.
type sink struct{}

func (sink) Write(p []byte) (int, error) { return len(p), nil }
func (sink) Close() error                { return nil }
func (sink) Abort() error                { return nil }
