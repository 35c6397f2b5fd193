package main

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ndlib/imageloader/imagecache"
	"github.com/ndlib/imageloader/records"
)

// config holds everything read from the configuration file. Every field has a
// usable default, so the file may be empty or missing.
//
// An example file:
//
//	Port = "14000"
//	CacheDir = "/var/cache/imageloader"
//	CacheSize = 1073741824          # bytes. 0 means no limit
//	MemoryEntries = 500             # 0 means no limit
//	FailureCooldownSeconds = 600    # 0 means failures are never retried
//	SentryDSN = "https://key@sentry.example.com/2"
type config struct {
	Port      string
	PProfPort string

	// CacheDir is where images and the saved record list are kept. It may
	// be a directory, "memory", or an s3: location.
	CacheDir      string
	CacheSize     int64
	MemoryEntries int
	Workers       int

	BaseURL        string
	Endpoint       string
	TimeoutSeconds int
	MaxBytes       int64
	FetchRate      float64 // image fetches per second. 0 means no limit
	BundledCAs     bool

	FailureCooldownSeconds int
	MaxStaleHours          int

	// MySQL, if set, keeps the saved record list in MySQL instead of
	// inside CacheDir. e.g. "user:password@tcp(localhost:3306)/imageloader"
	MySQL string

	SentryDSN string
}

func defaultConfig() config {
	return config{
		Port:           "14000",
		Workers:        imagecache.DefaultWorkers,
		BaseURL:        records.DefaultBaseURL,
		Endpoint:       records.DefaultEndpoint,
		TimeoutSeconds: 30,
		MaxBytes:       imagecache.DefaultMaxBytes,
		MaxStaleHours:  int(records.DefaultMaxStale / time.Hour),
	}
}

// loadConfig returns the defaults overlaid with the contents of fname.
func loadConfig(fname string) (config, error) {
	cfg := defaultConfig()
	if fname == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(fname, &cfg)
	return cfg, err
}

func (c config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c config) cooldown() time.Duration {
	return time.Duration(c.FailureCooldownSeconds) * time.Second
}

func (c config) maxStale() time.Duration {
	return time.Duration(c.MaxStaleHours) * time.Hour
}
