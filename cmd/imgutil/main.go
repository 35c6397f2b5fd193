// Command imgutil inspects and fills an image disk cache from the command
// line.
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ndlib/imageloader/blobcache"
	"github.com/ndlib/imageloader/imagecache"
	"github.com/ndlib/imageloader/records"
	"github.com/ndlib/imageloader/store"
)

var (
	storeDir = flag.String("s", ".", "location of the cache directory")
	timeout  = flag.Duration("timeout", 30*time.Second, "network timeout")
	baseURL  = flag.String("base", records.DefaultBaseURL, "records API base URL")
	usage    = `
imgutil <command> <command arguments>

Possible commands:
    key <url list>

    show <url list>

    get <url> [output file]

    list

    records

    warm
`
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()

	if len(args) == 0 {
		flag.Usage()
		return
	}

	path := filepath.Join(*storeDir, "blobcache")
	os.MkdirAll(path, 0755)
	fs := store.NewFileSystem(path)
	disk := imagecache.NewDisk(blobcache.NewUnbounded(fs))

	switch args[0] {
	case "key":
		dokey(args[1:])
	case "show":
		doshow(disk, args[1:])
	case "get":
		if len(args) < 2 {
			flag.Usage()
			return
		}
		var out string
		if len(args) > 2 {
			out = args[2]
		}
		doget(disk, args[1], out)
	case "list":
		dolist(fs)
	case "records":
		dorecords()
	case "warm":
		dowarm(disk)
	default:
		flag.Usage()
	}
}

func dokey(urls []string) {
	for _, u := range urls {
		fmt.Printf("%s  %s\n", imagecache.Key(u), u)
	}
}

func doshow(disk *imagecache.Disk, urls []string) {
	for _, u := range urls {
		fmt.Println("---")
		w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
		fmt.Fprintf(w, "URL:\t%s\n", u)
		fmt.Fprintf(w, "Key:\t%s\n", imagecache.Key(u))
		img, ok := disk.Get(u)
		fmt.Fprintf(w, "Cached:\t%v\n", ok)
		if ok {
			fmt.Fprintf(w, "Size:\t%s\n", dims(img))
		}
		w.Flush()
	}
}

func newLoader(disk *imagecache.Disk) *imagecache.Loader {
	return imagecache.NewLoader(nil, disk, imagecache.NewHTTPFetcher(*timeout), 0)
}

// doget resolves src, through the disk cache, and writes it as a JPEG to
// the given file or to stdout.
func doget(disk *imagecache.Disk, src string, out string) {
	img, ok := newLoader(disk).Resolve(src)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: Failed to load image\n", src)
		os.Exit(1)
	}
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	err := imagecache.Encode(w, img)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

type entry struct {
	key  string
	size int64
}
type ByKey []entry

func (s ByKey) Len() int           { return len(s) }
func (s ByKey) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s ByKey) Less(i, j int) bool { return s[i].key < s[j].key }

func dolist(fs store.Store) {
	var result []entry
	var total int64
	for key := range fs.List() {
		rac, size, err := fs.Open(key)
		if err != nil {
			fmt.Printf("%s: Error %s\n", key, err.Error())
			continue
		}
		rac.Close()
		result = append(result, entry{key, size})
		total += size
	}
	sort.Sort(ByKey(result))
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', tabwriter.AlignRight)
	for _, e := range result {
		fmt.Fprintf(w, "%s\t%d\t\n", e.key, e.size)
	}
	fmt.Fprintf(w, "%d items\t%d\t\n", len(result), total)
	w.Flush()
}

func listRecords() []records.Record {
	c := records.NewClient(*baseURL, "", *timeout)
	list, err := c.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return list
}

func dorecords() {
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	for _, r := range listRecords() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Title, r.CoverageURL)
	}
	w.Flush()
}

// dowarm loads every record's image into the disk cache.
func dowarm(disk *imagecache.Disk) {
	loader := newLoader(disk)
	defer loader.Close()
	var pending []<-chan imagecache.Result
	for _, r := range listRecords() {
		if r.CoverageURL == "" {
			continue
		}
		pending = append(pending, loader.Go(r.CoverageURL))
	}
	var nfailed int
	for _, c := range pending {
		res := <-c
		if !res.OK {
			nfailed++
			fmt.Printf("Failed %s\n", res.Source)
			continue
		}
		fmt.Printf("%s %s\n", imagecache.Key(res.Source), dims(res.Image))
	}
	fmt.Printf("%d images, %d failed\n", len(pending), nfailed)
}

func dims(img image.Image) string {
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}
