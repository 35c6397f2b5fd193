package records

import (
	"sync"
	"time"
)

// A Snapshot is a response body saved from a successful fetch.
type Snapshot struct {
	Endpoint string
	Fetched  time.Time
	Body     []byte
}

// SnapshotStore keeps the latest snapshot for each endpoint.
type SnapshotStore interface {
	// Latest returns the most recent snapshot for endpoint, or nil if
	// there is none.
	Latest(endpoint string) (*Snapshot, error)
	// Save replaces the snapshot for s.Endpoint.
	Save(s Snapshot) error
}

var (
	_ SnapshotStore = &memorySnapshots{}
	_ SnapshotStore = &qlSnapshots{}
	_ SnapshotStore = &mysqlSnapshots{}
)

type memorySnapshots struct {
	m    sync.Mutex
	last map[string]Snapshot
}

// NewMemorySnapshots returns a SnapshotStore which does not outlive the
// process.
func NewMemorySnapshots() SnapshotStore {
	return &memorySnapshots{last: make(map[string]Snapshot)}
}

func (ms *memorySnapshots) Latest(endpoint string) (*Snapshot, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	s, ok := ms.last[endpoint]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (ms *memorySnapshots) Save(s Snapshot) error {
	ms.m.Lock()
	ms.last[s.Endpoint] = s
	ms.m.Unlock()
	return nil
}
