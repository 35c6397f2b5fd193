package server

import (
	"expvar"
	"time"

	"github.com/facebookgo/stats"
)

// ExpvarStats is a stats.Client publishing its counters under a single
// expvar map, so they appear at /debug/vars.
type ExpvarStats struct {
	m *expvar.Map
}

var _ stats.Client = &ExpvarStats{}

// NewExpvarStats publishes a new map with the given name. Like expvar.Publish
// it panics if the name is already in use.
func NewExpvarStats(name string) *ExpvarStats {
	return &ExpvarStats{m: expvar.NewMap(name)}
}

// BumpAvg keeps the latest value for key. expvar has no notion of averages.
func (e *ExpvarStats) BumpAvg(key string, val float64) {
	f := new(expvar.Float)
	f.Set(val)
	e.m.Set(key, f)
}

// BumpSum adds val to the counter for key.
func (e *ExpvarStats) BumpSum(key string, val float64) {
	e.m.AddFloat(key, val)
}

// BumpHistogram records a count and a total for key.
func (e *ExpvarStats) BumpHistogram(key string, val float64) {
	e.m.AddFloat(key+".count", 1)
	e.m.AddFloat(key+".total", val)
}

// BumpTime starts a timer. Calling End on the result records the elapsed
// milliseconds as a histogram.
func (e *ExpvarStats) BumpTime(key string) interface {
	End()
} {
	return &timer{e: e, key: key, start: time.Now()}
}

type timer struct {
	e     *ExpvarStats
	key   string
	start time.Time
}

func (t *timer) End() {
	t.e.BumpHistogram(t.key+".ms", float64(time.Since(t.start))/float64(time.Millisecond))
}

// Get returns the current value for key, or 0.
func (e *ExpvarStats) Get(key string) float64 {
	if f, ok := e.m.Get(key).(*expvar.Float); ok {
		return f.Value()
	}
	return 0
}
