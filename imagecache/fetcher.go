package imagecache

import (
	"crypto/tls"
	"crypto/x509"
	"image"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/certifi/gocertifi"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// A Fetcher retrieves an image from its source.
type Fetcher interface {
	Fetch(src string) (image.Image, error)
}

// DefaultMaxBytes is the largest response body an HTTPFetcher will read
// unless told otherwise.
const DefaultMaxBytes = 20 << 20

var (
	ErrTooLarge = errors.New("image response body is too large")
)

// HTTPFetcher downloads images with a GET request. Network errors, timeouts,
// non-2xx responses and bodies which are not images all result in an error.
type HTTPFetcher struct {
	Client    *http.Client
	MaxBytes  int64         // bodies larger than this are refused. 0 means DefaultMaxBytes
	Limiter   *rate.Limiter // if not nil, requests wait for a token
	UserAgent string
}

// NewHTTPFetcher returns a fetcher whose requests give up after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: timeout},
	}
}

// UseBundledCAs makes the fetcher verify servers against the Mozilla root
// certificates compiled into the binary instead of the system pool.
func (f *HTTPFetcher) UseBundledCAs() error {
	pool, err := gocertifi.CACerts()
	if err != nil {
		return err
	}
	return f.useRoots(pool)
}

func (f *HTTPFetcher) useRoots(pool *x509.CertPool) error {
	tr, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return errors.New("default transport is not an *http.Transport")
	}
	tr = tr.Clone()
	tr.TLSClientConfig = &tls.Config{RootCAs: pool}
	if f.Client == nil {
		f.Client = &http.Client{}
	}
	f.Client.Transport = tr
	return nil
}

// Fetch downloads and decodes the image at src.
func (f *HTTPFetcher) Fetch(src string) (image.Image, error) {
	if f.Limiter != nil {
		r := f.Limiter.Reserve()
		if !r.OK() {
			return nil, errors.New("fetch rate limit has no burst")
		}
		time.Sleep(r.Delay())
	}
	req, err := http.NewRequest("GET", src, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(ioutil.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("GET %s: received status %d", src, resp.StatusCode)
	}
	max := f.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if resp.ContentLength > max {
		return nil, ErrTooLarge
	}
	lr := &io.LimitedReader{R: resp.Body, N: max + 1}
	img, err := Decode(lr)
	if lr.N <= 0 {
		return nil, ErrTooLarge
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", src)
	}
	return img, nil
}
