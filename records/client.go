package records

import (
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL  = "https://acharyaprashant.org/"
	DefaultEndpoint = "api/v2/content/misc/media-coverages?limit=100"

	// DefaultMaxStale is the oldest snapshot used when offline.
	DefaultMaxStale = 7 * 24 * time.Hour

	// responses larger than this are refused
	maxBody = 10 << 20
)

// Exported errors
var (
	ErrOffline        = errors.New("No internet connection and no saved record list")
	ErrUnexpectedResp = errors.New("Unexpected Response Code")
	ErrBadResponse    = errors.New("Response is not a list of records")
)

// A Client gets the record list from the API. It is safe to share between
// goroutines once set up.
type Client struct {
	BaseURL  string
	Endpoint string
	HTTP     *http.Client

	// Snapshots, if not nil, saves each good response and supplies the
	// fallback when the API cannot be reached.
	Snapshots SnapshotStore

	// MaxStale is the age past which a snapshot is no longer used.
	// 0 means DefaultMaxStale.
	MaxStale time.Duration

	Clock clock.Clock
}

// NewClient returns a client for the given API. Requests time out after
// timeout.
func NewClient(baseURL, endpoint string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		BaseURL:  baseURL,
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
		Clock:    clock.New(),
	}
}

// URL returns the full address of the record list.
func (c *Client) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.Endpoint, "/")
}

// List returns the current record list. If the API fails, the latest
// snapshot is returned instead. If there is no usable snapshot the error
// has ErrOffline as its cause.
func (c *Client) List() ([]Record, error) {
	body, err := c.fetch()
	if err == nil {
		var result []Record
		result, err = Parse(body)
		if err == nil {
			c.save(body)
			return result, nil
		}
	}
	log.Println("records: fetch", c.URL(), err)
	result, serr := c.fromSnapshot()
	if serr != nil {
		return nil, errors.Wrap(serr, err.Error())
	}
	return result, nil
}

func (c *Client) fetch() ([]byte, error) {
	req, err := http.NewRequest("GET", c.URL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		io.Copy(ioutil.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Wrapf(ErrUnexpectedResp, "received status %d", resp.StatusCode)
	}
	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, errors.Wrap(ErrBadResponse, "response too large")
	}
	return body, nil
}

func (c *Client) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Client) save(body []byte) {
	if c.Snapshots == nil {
		return
	}
	err := c.Snapshots.Save(Snapshot{
		Endpoint: c.URL(),
		Fetched:  c.now(),
		Body:     body,
	})
	if err != nil {
		log.Println("records: saving snapshot", err)
		raven.CaptureError(err, map[string]string{"Endpoint": c.URL()})
	}
}

func (c *Client) fromSnapshot() ([]Record, error) {
	if c.Snapshots == nil {
		return nil, ErrOffline
	}
	snap, err := c.Snapshots.Latest(c.URL())
	if err != nil {
		log.Println("records: reading snapshot", err)
		return nil, ErrOffline
	}
	if snap == nil {
		return nil, ErrOffline
	}
	maxStale := c.MaxStale
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}
	age := c.now().Sub(snap.Fetched)
	if age > maxStale {
		log.Printf("records: snapshot is %v old, limit is %v", age, maxStale)
		return nil, ErrOffline
	}
	result, err := Parse(snap.Body)
	if err != nil {
		return nil, ErrOffline
	}
	log.Printf("records: using snapshot from %v", snap.Fetched)
	return result, nil
}
