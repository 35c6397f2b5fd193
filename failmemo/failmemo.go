// Package failmemo remembers which image sources have failed to load, so a
// caller can avoid asking for them again.
//
// By default a failure is remembered until Clear is called or the process
// exits. With a cooldown, a failure is forgotten once the cooldown passes and
// the source may be tried again.
package failmemo

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Memo is a goroutine safe set of failed sources. The zero value is an
// empty memo which never forgets.
type Memo struct {
	// Cooldown is how long a failure is remembered. 0 means forever.
	Cooldown time.Duration

	// Clock gives the current time. nil uses the system clock.
	Clock clock.Clock

	m      sync.Mutex
	failed map[string]time.Time // source -> time marked
}

// New returns an empty Memo with the given cooldown.
func New(cooldown time.Duration) *Memo {
	return &Memo{
		Cooldown: cooldown,
		Clock:    clock.New(),
		failed:   make(map[string]time.Time),
	}
}

// MarkFailed records that src failed to load just now.
func (m *Memo) MarkFailed(src string) {
	now := m.now()
	m.m.Lock()
	if m.failed == nil {
		m.failed = make(map[string]time.Time)
	}
	m.failed[src] = now
	m.m.Unlock()
}

func (m *Memo) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock.Now()
}

// IsFailed returns true if src has been marked and the mark has not expired.
func (m *Memo) IsFailed(src string) bool {
	m.m.Lock()
	defer m.m.Unlock()
	when, ok := m.failed[src]
	if !ok {
		return false
	}
	if m.expired(when) {
		delete(m.failed, src)
		return false
	}
	return true
}

func (m *Memo) expired(when time.Time) bool {
	return m.Cooldown > 0 && m.now().Sub(when) >= m.Cooldown
}

// Clear forgets every failure.
func (m *Memo) Clear() {
	m.m.Lock()
	m.failed = make(map[string]time.Time)
	m.m.Unlock()
}

// Len returns the number of failures currently remembered.
func (m *Memo) Len() int {
	m.m.Lock()
	defer m.m.Unlock()
	var n int
	for src, when := range m.failed {
		if m.expired(when) {
			delete(m.failed, src)
			continue
		}
		n++
	}
	return n
}

// List returns the sources currently remembered as failed, in no particular
// order.
func (m *Memo) List() []string {
	m.m.Lock()
	defer m.m.Unlock()
	var result []string
	for src, when := range m.failed {
		if !m.expired(when) {
			result = append(result, src)
		}
	}
	return result
}
