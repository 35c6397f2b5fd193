// Command imageloader serves a gallery of the images listed by a remote API.
// Images are cached in memory and on disk, so the gallery keeps working, as
// far as it can, when the API or the image hosts cannot be reached.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	raven "github.com/getsentry/raven-go"
	"golang.org/x/time/rate"

	"github.com/ndlib/imageloader/blobcache"
	"github.com/ndlib/imageloader/failmemo"
	"github.com/ndlib/imageloader/imagecache"
	"github.com/ndlib/imageloader/records"
	"github.com/ndlib/imageloader/server"
)

func main() {
	var (
		configFile  = flag.String("config", "", "configuration file (TOML)")
		port        = flag.String("port", "", "port to listen on, overrides the config file")
		cacheDir    = flag.String("cache", "", "cache location, overrides the config file")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(server.Version)
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalln("Reading config:", err)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}

	if cfg.SentryDSN != "" {
		if err := raven.SetDSN(cfg.SentryDSN); err != nil {
			log.Println("Sentry:", err)
		}
		raven.SetRelease(server.Version)
	}

	loader := newLoader(cfg)
	client := records.NewClient(cfg.BaseURL, cfg.Endpoint, cfg.timeout())
	client.Snapshots = newSnapshots(cfg)
	client.MaxStale = cfg.maxStale()

	s := &server.Server{
		PortNumber: cfg.Port,
		PProfPort:  cfg.PProfPort,
		Records:    client,
		Loader:     loader,
		Memo:       failmemo.New(cfg.cooldown()),
		Stats:      server.NewExpvarStats("http"),
	}

	go signalHandler(s)

	err = s.Run()
	loader.Close()
	if err != nil {
		log.Fatalln(err)
	}
}

// newLoader builds the memory -> disk -> network chain described by cfg.
func newLoader(cfg config) *imagecache.Loader {
	log.Printf("CacheDir = %s", cfg.CacheDir)
	log.Printf("CacheSize = %d", cfg.CacheSize)
	log.Printf("MemoryEntries = %d", cfg.MemoryEntries)

	s := parselocation(cfg.CacheDir, "blobcache")
	if s == nil {
		log.Fatalln("Cannot use cache location", cfg.CacheDir)
	}
	var bc blobcache.Cache
	if cfg.CacheSize > 0 {
		c := blobcache.NewLRU(s, cfg.CacheSize)
		go c.Scan()
		bc = c
	} else {
		bc = blobcache.NewUnbounded(s)
	}

	fetcher := imagecache.NewHTTPFetcher(cfg.timeout())
	fetcher.MaxBytes = cfg.MaxBytes
	fetcher.UserAgent = "imageloader/" + server.Version
	if cfg.FetchRate > 0 {
		fetcher.Limiter = rate.NewLimiter(rate.Limit(cfg.FetchRate), 1)
	}
	if cfg.BundledCAs {
		if err := fetcher.UseBundledCAs(); err != nil {
			log.Fatalln("Loading bundled certificates:", err)
		}
	}

	loader := imagecache.NewLoader(
		imagecache.NewMemory(cfg.MemoryEntries),
		imagecache.NewDisk(bc),
		fetcher,
		cfg.Workers)
	loader.Stats = server.NewExpvarStats("loader")
	return loader
}

// newSnapshots picks where the saved record list is kept: MySQL if
// configured, otherwise a QL database inside the cache directory, otherwise
// memory.
func newSnapshots(cfg config) records.SnapshotStore {
	if cfg.MySQL != "" {
		log.Printf("Using MySQL")
		ss, err := records.NewMysqlSnapshots(cfg.MySQL)
		if err != nil {
			log.Fatalln("problem setting up database:", err)
		}
		return ss
	}
	path := "memory"
	if dir := localdir(cfg.CacheDir); dir != "" {
		path = filepath.Join(dir, "records.ql")
	}
	log.Printf("Using internal database at %s", path)
	ss, err := records.NewQlSnapshots(path)
	if err != nil {
		log.Println("problem setting up database, using memory:", err)
		return records.NewMemorySnapshots()
	}
	return ss
}

// signalHandler stops the server on SIGINT or SIGTERM.
func signalHandler(s *server.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Received signal, stopping")
	err := s.Stop()
	if err != nil {
		log.Println(err)
	}
}
