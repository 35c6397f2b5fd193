package imagecache

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/facebookgo/stats"
	"github.com/golang/groupcache/singleflight"

	"github.com/ndlib/imageloader/util"
)

// A Tier is one level of image cache.
type Tier interface {
	Get(src string) (image.Image, bool)
	Put(src string, img image.Image)
}

var (
	_ Tier = &Memory{}
	_ Tier = &Disk{}
)

// DefaultWorkers is the number of background resolutions allowed to run at
// once when none is given to NewLoader.
const DefaultWorkers = 64

// Loader resolves an image through the memory cache, then the disk cache, and
// then the fetcher. A disk hit is copied into memory; a fetched image is
// copied into both. Failed fetches are never cached.
//
// Every failure, including a panic in one of the tiers, is reported as an
// absent image. Concurrent resolutions of the same source share a single
// disk read and fetch.
type Loader struct {
	Memory  Tier         // may be nil
	Disk    Tier         // may be nil
	Fetcher Fetcher      // may be nil, in which case nothing is fetched
	Stats   stats.Client // may be nil

	gate  *util.Gate
	table singleflight.Group // keyed by source
}

// Result is the outcome of a background resolution.
type Result struct {
	Source string
	Image  image.Image
	OK     bool
}

// NewLoader returns a loader using the given tiers. At most workers
// background resolutions run at a time; 0 means DefaultWorkers.
func NewLoader(memory, disk Tier, f Fetcher, workers int) *Loader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Loader{
		Memory:  memory,
		Disk:    disk,
		Fetcher: f,
		gate:    util.NewGate(workers),
	}
}

// Resolve returns the image for src, blocking until it is found or every
// tier has missed. It never panics.
func (l *Loader) Resolve(src string) (img image.Image, ok bool) {
	defer stats.BumpTime(l.Stats, "resolve.time").End()
	defer func() {
		if r := recover(); r != nil {
			log.Println("Loader: panic resolving", src, r)
			stats.BumpSum(l.Stats, "resolve.panic", 1)
			img, ok = nil, false
		}
	}()
	if src == "" {
		return nil, false
	}
	if l.Memory != nil {
		if img, ok = l.Memory.Get(src); ok {
			stats.BumpSum(l.Stats, "memory.hit", 1)
			return img, true
		}
	}
	v, err := l.table.Do(src, func() (interface{}, error) {
		return l.load(src)
	})
	if err != nil || v == nil {
		stats.BumpSum(l.Stats, "resolve.miss", 1)
		return nil, false
	}
	return v.(image.Image), true
}

// load does the disk and network steps. It recovers from panics itself since
// the other goroutines waiting on the same source would otherwise block
// forever.
func (l *Loader) load(src string) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats.BumpSum(l.Stats, "resolve.panic", 1)
			img, err = nil, fmt.Errorf("panic loading %s: %v", src, r)
			log.Println("Loader:", err)
		}
	}()
	if l.Disk != nil {
		if img, ok := l.Disk.Get(src); ok {
			stats.BumpSum(l.Stats, "disk.hit", 1)
			l.putMemory(src, img)
			return img, nil
		}
	}
	if l.Fetcher == nil {
		return nil, errNoFetcher
	}
	img, err = l.Fetcher.Fetch(src)
	if err == nil && img == nil {
		err = errNoImage
	}
	if err != nil {
		stats.BumpSum(l.Stats, "fetch.error", 1)
		log.Println("Loader: fetch", src, err)
		return nil, err
	}
	stats.BumpSum(l.Stats, "fetch.ok", 1)
	l.putMemory(src, img)
	if l.Disk != nil {
		l.Disk.Put(src, img)
	}
	return img, nil
}

var (
	errNoFetcher = errors.New("no fetcher")
	errNoImage   = errors.New("fetcher returned no image")
)

func (l *Loader) putMemory(src string, img image.Image) {
	if l.Memory != nil {
		l.Memory.Put(src, img)
	}
}

// ResolveAsync resolves src in the background and passes the outcome to fn.
// The calling goroutine is never blocked. Completion order across sources is
// not defined.
func (l *Loader) ResolveAsync(src string, fn func(image.Image, bool)) {
	go func() {
		img, ok := l.resolveGated(src)
		if fn != nil {
			fn(img, ok)
		}
	}()
}

// Go resolves src in the background. The returned channel receives exactly
// one Result.
func (l *Loader) Go(src string) <-chan Result {
	c := make(chan Result, 1)
	go func() {
		img, ok := l.resolveGated(src)
		c <- Result{Source: src, Image: img, OK: ok}
	}()
	return c
}

func (l *Loader) resolveGated(src string) (image.Image, bool) {
	if !l.gate.Enter() {
		// loader was closed
		return nil, false
	}
	defer l.gate.Leave()
	return l.Resolve(src)
}

// Close waits for running background resolutions to finish. Ones which have
// not started yet resolve as absent.
func (l *Loader) Close() {
	l.gate.Stop()
}
