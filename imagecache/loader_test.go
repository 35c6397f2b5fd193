package imagecache

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndlib/imageloader/blobcache"
	"github.com/ndlib/imageloader/store"
)

// fakeFetcher counts its calls. It returns img unless err is set.
type fakeFetcher struct {
	m     sync.Mutex
	n     int64
	img   image.Image
	err   error
	wait  chan struct{} // if not nil, Fetch blocks until it is closed
	panic bool
}

func (f *fakeFetcher) Fetch(src string) (image.Image, error) {
	atomic.AddInt64(&f.n, 1)
	if f.wait != nil {
		<-f.wait
	}
	f.m.Lock()
	defer f.m.Unlock()
	if f.panic {
		panic("fetcher exploded")
	}
	return f.img, f.err
}

func (f *fakeFetcher) count() int64 { return atomic.LoadInt64(&f.n) }

func (f *fakeFetcher) disconnect() {
	f.m.Lock()
	f.img = nil
	f.err = errors.New("network unreachable")
	f.m.Unlock()
}

// sumStats records BumpSum calls.
type sumStats struct {
	m    sync.Mutex
	sums map[string]float64
}

func (s *sumStats) BumpAvg(key string, val float64)       {}
func (s *sumStats) BumpHistogram(key string, val float64) {}
func (s *sumStats) BumpSum(key string, val float64) {
	s.m.Lock()
	if s.sums == nil {
		s.sums = make(map[string]float64)
	}
	s.sums[key] += val
	s.m.Unlock()
}
func (s *sumStats) BumpTime(key string) interface {
	End()
} {
	return nopEnd{}
}
func (s *sumStats) get(key string) float64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.sums[key]
}

type nopEnd struct{}

func (nopEnd) End() {}

func newTestLoader(f Fetcher) (*Loader, *Memory, *Disk) {
	mem := NewMemory(0)
	disk := NewDisk(blobcache.NewUnbounded(store.NewMemory()))
	return NewLoader(mem, disk, f, 4), mem, disk
}

func TestResolveColdThenWarm(t *testing.T) {
	placeholder := solid(10, 10, color.RGBA{90, 90, 90, 255})
	f := &fakeFetcher{img: placeholder}
	l, mem, disk := newTestLoader(f)
	st := &sumStats{}
	l.Stats = st
	src := "https://x/a.jpg"

	img, ok := l.Resolve(src)
	if !ok || img != placeholder {
		t.Fatalf("cold resolve got (%v, %v)", img, ok)
	}
	if f.count() != 1 {
		t.Errorf("fetcher called %d times, expected 1", f.count())
	}
	if mem.Len() != 1 || !disk.Contains(src) {
		t.Errorf("fetched image not saved in both tiers")
	}

	f.disconnect()
	img, ok = l.Resolve(src)
	if !ok || img != placeholder {
		t.Fatalf("warm resolve got (%v, %v)", img, ok)
	}
	if f.count() != 1 {
		t.Errorf("fetcher called %d times, expected 1", f.count())
	}
	if st.get("memory.hit") != 1 || st.get("fetch.ok") != 1 {
		t.Errorf("unexpected stats %v", st.sums)
	}
}

func TestResolveFromDisk(t *testing.T) {
	placeholder := solid(10, 10, color.RGBA{200, 10, 10, 255})
	f := &fakeFetcher{img: placeholder}
	l, mem, _ := newTestLoader(f)
	src := "https://x/b.jpg"
	l.Resolve(src)

	mem.Clear()
	f.disconnect()
	img, ok := l.Resolve(src)
	if !ok {
		t.Fatalf("disk resolve missed")
	}
	if !closeTo(placeholder, img) {
		t.Errorf("disk image differs")
	}
	if f.count() != 1 {
		t.Errorf("fetcher called %d times, expected 1", f.count())
	}
	if _, ok := mem.Get(src); !ok {
		t.Errorf("memory cache not repopulated from disk")
	}
}

func TestResolveFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	l, mem, disk := newTestLoader(f)
	src := "https://x/missing.jpg"
	for i := 0; i < 3; i++ {
		if img, ok := l.Resolve(src); ok || img != nil {
			t.Errorf("resolve of failing source got (%v, %v)", img, ok)
		}
	}
	if f.count() != 3 {
		t.Errorf("fetcher called %d times, expected 3", f.count())
	}
	if mem.Len() != 0 || disk.Contains(src) {
		t.Errorf("a failure was cached")
	}
}

func TestResolvePanic(t *testing.T) {
	f := &fakeFetcher{panic: true}
	l, mem, _ := newTestLoader(f)
	img, ok := l.Resolve("https://x/panic.jpg")
	if ok || img != nil {
		t.Errorf("got (%v, %v), expected absent", img, ok)
	}
	if mem.Len() != 0 {
		t.Errorf("a failure was cached")
	}
}

type panicTier struct{}

func (panicTier) Get(src string) (image.Image, bool) { panic("tier exploded") }
func (panicTier) Put(src string, img image.Image)    { panic("tier exploded") }

func TestResolvePanicInTier(t *testing.T) {
	l := NewLoader(panicTier{}, nil, &fakeFetcher{img: solid(1, 1, color.White)}, 1)
	if _, ok := l.Resolve("https://x/a.jpg"); ok {
		t.Errorf("expected absent")
	}
}

func TestResolveNoTiers(t *testing.T) {
	placeholder := solid(1, 1, color.White)
	l := NewLoader(nil, nil, &fakeFetcher{img: placeholder}, 1)
	if img, ok := l.Resolve("https://x/a.jpg"); !ok || img != placeholder {
		t.Errorf("got (%v, %v)", img, ok)
	}
	l = NewLoader(nil, nil, nil, 1)
	if _, ok := l.Resolve("https://x/a.jpg"); ok {
		t.Errorf("resolved without a fetcher")
	}
	if _, ok := l.Resolve(""); ok {
		t.Errorf("resolved an empty source")
	}
}

func TestResolveCoalesces(t *testing.T) {
	f := &fakeFetcher{img: solid(2, 2, color.White), wait: make(chan struct{})}
	l, _, _ := newTestLoader(f)
	var wg sync.WaitGroup
	var nok int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.Resolve("https://x/shared.jpg"); ok {
				atomic.AddInt64(&nok, 1)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(f.wait)
	wg.Wait()
	if f.count() != 1 {
		t.Errorf("fetcher called %d times, expected 1", f.count())
	}
	if nok != 10 {
		t.Errorf("%d resolutions succeeded, expected 10", nok)
	}
}

func TestGo(t *testing.T) {
	placeholder := solid(3, 3, color.White)
	l, _, _ := newTestLoader(&fakeFetcher{img: placeholder})
	defer l.Close()
	sources := []string{"https://x/1.jpg", "https://x/2.jpg", "https://x/3.jpg"}
	var results []<-chan Result
	for _, src := range sources {
		results = append(results, l.Go(src))
	}
	for i, c := range results {
		r := <-c
		if r.Source != sources[i] || !r.OK || r.Image != placeholder {
			t.Errorf("result %d: %+v", i, r)
		}
	}
}

func TestResolveAsync(t *testing.T) {
	f := &fakeFetcher{err: errors.New("offline")}
	l, _, _ := newTestLoader(f)
	done := make(chan bool)
	l.ResolveAsync("https://x/a.jpg", func(img image.Image, ok bool) {
		done <- ok
	})
	select {
	case ok := <-done:
		if ok {
			t.Errorf("failing fetch resolved")
		}
	case <-time.After(time.Second):
		t.Fatalf("callback never called")
	}
}

func TestCloseTurnsAwayWork(t *testing.T) {
	l, _, _ := newTestLoader(&fakeFetcher{img: solid(1, 1, color.White)})
	l.Close()
	r := <-l.Go("https://x/late.jpg")
	if r.OK {
		t.Errorf("resolution ran after Close")
	}
}
