// Package util holds small concurrency helpers shared by the other packages.
package util

import (
	"sync"
)

// A Gate limits concurrency. Every gate has a maximum number
// number of goroutines to allow through at a time. Goroutines enter the gate
// by calling Enter(), and signal that they are done by calling Leave().
//
// Once Stop() is called, goroutines waiting to Enter are turned away.
type Gate struct {
	slots chan struct{}
	quit  chan struct{}
	once  sync.Once
}

// NewGate returns a Gate which accepts at most n entries at a time.
func NewGate(n int) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{
		slots: make(chan struct{}, n),
		quit:  make(chan struct{}),
	}
}

// Enter is called at the beginning of the section to be protected by
// the gate, and will block the calling goroutine until there are less than
// n goroutines inside. It returns false if the gate was stopped while
// waiting, in which case the caller did not enter and must not call Leave.
// It is safe to call this from multiple goroutines.
func (g *Gate) Enter() bool {
	select {
	case <-g.quit:
		return false
	default:
	}
	select {
	case g.slots <- struct{}{}:
		return true
	case <-g.quit:
		return false
	}
}

// Leave marks a goroutine outside the critical section. It is important to
// balance each call to Enter with a call to Leave. Enter and Leave do not need
// to be called from the same goroutine, necessarily.
func (g *Gate) Leave() {
	<-g.slots
}

// Stop closes the gate. Waiting goroutines are released with Enter returning
// false, and Stop then blocks until every goroutine inside has called Leave.
// Calling Stop more than once is fine.
func (g *Gate) Stop() {
	g.once.Do(func() {
		close(g.quit)
		for i := 0; i < cap(g.slots); i++ {
			g.slots <- struct{}{}
		}
	})
}

// Len returns the number of goroutines currently inside the gate.
func (g *Gate) Len() int {
	return len(g.slots)
}
