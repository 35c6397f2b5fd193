package imagecache

import (
	"fmt"
	"image/color"
	"sync"
	"testing"
)

func TestMemory(t *testing.T) {
	m := NewMemory(0)
	if _, ok := m.Get("a"); ok {
		t.Errorf("empty cache had a hit")
	}
	red := solid(2, 2, color.RGBA{255, 0, 0, 255})
	blue := solid(2, 2, color.RGBA{0, 0, 255, 255})
	m.Put("a", red)
	m.Put("a", blue)
	img, ok := m.Get("a")
	if !ok || img != blue {
		t.Errorf("Get returned (%v, %v), expected the last image put", img, ok)
	}
	m.Put("b", nil)
	if m.Len() != 1 {
		t.Errorf("Len is %d, expected 1", m.Len())
	}
	m.Clear()
	if _, ok := m.Get("a"); ok {
		t.Errorf("hit after Clear")
	}
}

func TestMemoryUnbounded(t *testing.T) {
	m := NewMemory(0)
	img := solid(1, 1, color.White)
	for i := 0; i < 1000; i++ {
		m.Put(fmt.Sprintf("img-%d", i), img)
	}
	if m.Len() != 1000 {
		t.Errorf("Len is %d, expected 1000", m.Len())
	}
}

func TestMemoryBounded(t *testing.T) {
	m := NewMemory(2)
	img := solid(1, 1, color.White)
	m.Put("a", img)
	m.Put("b", img)
	m.Get("a")
	m.Put("c", img)
	if _, ok := m.Get("b"); ok {
		t.Errorf("b should have been evicted")
	}
	if _, ok := m.Get("a"); !ok {
		t.Errorf("a was evicted")
	}
	m.Clear()
	m.Put("x", img)
	m.Put("y", img)
	m.Put("z", img)
	if m.Len() != 2 {
		t.Errorf("Clear lost the bound, Len is %d", m.Len())
	}
}

func TestMemoryConcurrent(t *testing.T) {
	m := NewMemory(0)
	img := solid(1, 1, color.Black)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("img-%d", j)
				m.Put(key, img)
				m.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if m.Len() != 100 {
		t.Errorf("Len is %d, expected 100", m.Len())
	}
}
