// Package store provides a simple, goroutine safe key-value interface. Instead
// of values being an opaque array of bytes, though, they are a stream. The
// image caches sit on top of a store, so the same cache code can be kept in
// memory, on a local disk, or in an S3 bucket.
//
// Probably the most important implementation is the FileSystem. The others are
// useful for testing or for sharing a cache between hosts.
package store

import (
	"errors"
	"io"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store defines the basic stream based key-value store.
// Items are immutable once stored, but they may be deleted and then replaced
// with a new value. Creating a key which already exists returns ErrKeyExists.
//
// Since the FileSystem store uses the key as file names, keys should not
// contain forbidden filesystem characters, such as '/'.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only pieces of a Store. It allows one to list contents,
// and to retrieve data.
type ROStore interface {
	List() <-chan string
	ListPrefix(prefix string) ([]string, error)
	Open(key string) (ReadAtCloser, int64, error)
}

// An Aborter is a writer returned by Create which can be abandoned. Abort
// throws away everything written and leaves the key as it was. The writer
// must not be closed afterwards.
type Aborter interface {
	Abort() error
}

// Abort abandons a writer returned by Create. Writers which are not an
// Aborter are closed, which publishes what was written.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("Key already exists")

	// ErrNotExist indicates the key is not in the store
	ErrNotExist = errors.New("Key does not exist")
)

// NewReader converts a ReaderAt into a io.Reader. It is here as a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}
