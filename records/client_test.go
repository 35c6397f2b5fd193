package records

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
)

// fakeAPI serves the records endpoint. Queued replies are sent first, one
// per request, and then every request gets sampleBody.
type fakeAPI struct {
	m       sync.Mutex
	queue   []reply
	request int
}

type reply struct {
	status int
	body   string
}

// then queues replies for the next requests.
func (f *fakeAPI) then(r ...reply) {
	f.m.Lock()
	f.queue = append(f.queue, r...)
	f.m.Unlock()
}

func (f *fakeAPI) requests() int {
	f.m.Lock()
	defer f.m.Unlock()
	return f.request
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v2/content/misc/media-coverages" {
		http.NotFound(w, r)
		return
	}
	f.m.Lock()
	f.request++
	next := reply{200, sampleBody}
	if len(f.queue) > 0 {
		next = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.m.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(next.status)
	w.Write([]byte(next.body))
}

func newTestClient(t *testing.T) (*Client, *fakeAPI, *clock.Mock, func()) {
	api := &fakeAPI{}
	ts := httptest.NewServer(api)
	c := NewClient(ts.URL+"/", "", 5*time.Second)
	mock := clock.NewMock()
	c.Clock = mock
	c.Snapshots = NewMemorySnapshots()
	return c, api, mock, ts.Close
}

func TestURL(t *testing.T) {
	var table = []struct {
		base, endpoint, url string
	}{
		{"https://acharyaprashant.org/", "api/v2/x", "https://acharyaprashant.org/api/v2/x"},
		{"https://acharyaprashant.org", "/api/v2/x", "https://acharyaprashant.org/api/v2/x"},
		{"https://h/", "", "https://h/" + DefaultEndpoint},
	}
	for _, test := range table {
		c := NewClient(test.base, test.endpoint, time.Second)
		if c.URL() != test.url {
			t.Errorf("URL() = %s, expected %s", c.URL(), test.url)
		}
	}
}

func TestList(t *testing.T) {
	c, _, _, done := newTestClient(t)
	defer done()
	result, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Errorf("got %d records, expected 2", len(result))
	}
	snap, _ := c.Snapshots.Latest(c.URL())
	if snap == nil || string(snap.Body) != sampleBody {
		t.Errorf("response was not saved as a snapshot")
	}
}

func TestListFallsBackToSnapshot(t *testing.T) {
	c, api, mock, done := newTestClient(t)
	defer done()
	if _, err := c.List(); err != nil {
		t.Fatal(err)
	}
	mock.Add(6 * 24 * time.Hour)
	bad := []reply{
		{500, "server error"},
		{200, "<html>captive portal</html>"},
		{200, sampleBody[:len(sampleBody)/2]},
		{200, `{"error": "rate limited"}`},
		{200, `[{"id": "1"}, "2"]`},
	}
	api.then(bad...)
	for i := range bad {
		result, err := c.List()
		if err != nil {
			t.Fatalf("request %d: %s", i, err)
		}
		if len(result) != 2 {
			t.Errorf("request %d: got %d records from snapshot", i, len(result))
		}
	}
}

func TestListStaleSnapshot(t *testing.T) {
	c, api, mock, done := newTestClient(t)
	defer done()
	if _, err := c.List(); err != nil {
		t.Fatal(err)
	}
	mock.Add(DefaultMaxStale + time.Minute)
	api.then(reply{503, ""})
	_, err := c.List()
	if errors.Cause(err) != ErrOffline {
		t.Errorf("got %v, expected ErrOffline", err)
	}
	t.Log(err)

	c.MaxStale = 30 * 24 * time.Hour
	api.then(reply{503, ""})
	if _, err := c.List(); err != nil {
		t.Errorf("longer MaxStale still failed: %v", err)
	}
}

func TestListOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewClient(url, "", time.Second)
	_, err := c.List()
	if errors.Cause(err) != ErrOffline {
		t.Errorf("got %v, expected ErrOffline", err)
	}
	c.Snapshots = NewMemorySnapshots()
	_, err = c.List()
	if errors.Cause(err) != ErrOffline {
		t.Errorf("got %v, expected ErrOffline", err)
	}
}

func TestListErrorIsReplacedBySuccess(t *testing.T) {
	c, api, _, done := newTestClient(t)
	defer done()
	api.then(reply{404, ""})
	if _, err := c.List(); errors.Cause(err) != ErrOffline {
		t.Errorf("got %v, expected ErrOffline", err)
	}
	if _, err := c.List(); err != nil {
		t.Errorf("got %v, expected success", err)
	}
	if api.requests() != 2 {
		t.Errorf("got %d requests, expected 2", api.requests())
	}
}

func TestListMalformedWithoutSnapshot(t *testing.T) {
	c, api, _, done := newTestClient(t)
	defer done()
	var table = []string{
		sampleBody[:len(sampleBody)/2],
		`{"records": []}`,
		`["a", "b"]`,
	}
	for _, body := range table {
		api.then(reply{200, body})
		_, err := c.List()
		if errors.Cause(err) != ErrOffline {
			t.Errorf("%q: got %v, expected ErrOffline", body, err)
		}
	}
	snap, _ := c.Snapshots.Latest(c.URL())
	if snap != nil {
		t.Errorf("malformed body was saved as a snapshot")
	}
}
