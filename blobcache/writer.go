package blobcache

import (
	"io"

	"github.com/ndlib/imageloader/store"
)

// writer copies a new item into a T. Space is reserved as bytes arrive, and
// the item joins the LRU list only once the store has published it. After
// any failed Write the store writer is abandoned rather than closed, so a
// partial item never appears under its key.
type writer struct {
	t    *T
	key  string
	w    io.WriteCloser
	size int64 // bytes reserved so far
	err  error // first Write error
}

var _ store.Aborter = &writer{}

func (w *writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	// reserve first so the cache never holds more than maxSize
	if err := w.t.reserve(int64(len(p))); err != nil {
		w.err = err
		return 0, err
	}
	w.size += int64(len(p))
	n, err := w.w.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

// Close publishes the item. If a Write had failed the item is abandoned
// and that error is returned.
func (w *writer) Close() error {
	if w.err != nil {
		w.Abort()
		return w.err
	}
	err := w.w.Close()
	if err != nil {
		w.t.release(w.size)
		return err
	}
	w.t.link(w.key, w.size)
	return nil
}

// Abort abandons the item and gives back its reserved space.
func (w *writer) Abort() error {
	w.t.release(w.size)
	w.size = 0
	return store.Abort(w.w)
}
