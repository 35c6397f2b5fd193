package store

import (
	"errors"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem implements the simple file system based store.
// The keys are used as file names, spread over two levels of subdirectories
// taken from the first four characters of the key. The cache keys are hex
// digests, so the fan out is even.
//
// New content is written into a scratch directory and renamed into place when
// the writer is closed, so a reader never sees a partially written file.
type FileSystem struct {
	root string
}

const (
	// the subdir to store files while they are being written to.
	scratchdir = "scratch"
)

var (
	// make sure it implements the Store interface
	_ Store = &FileSystem{}

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace  means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar  means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control Characters")

	// ErrEmptyKey means the key provided is the empty string
	ErrEmptyKey = errors.New("Key is empty")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
// The root directory is created lazily on the first write.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root}
}

// Root returns the directory this store keeps its files under.
func (s *FileSystem) Root() string {
	return s.root
}

// List returns a channel listing all the keys in this store.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go walkTree(c, s.root, 0)
	return c
}

// Perform depth first walk of file tree at root, emitting all item keys on
// channel out. The scratch directory is skipped.
//
// If level is 0, the channel is closed when the function exits.
func walkTree(out chan<- string, root string, level int) {
	if level == 0 {
		defer close(out)
	}
	f, err := os.Open(root)
	if err != nil {
		// a cache that was never written to has no root yet
		if !os.IsNotExist(err) {
			log.Println("FileSystem List:", err)
			raven.CaptureError(err, map[string]string{"Root": root})
		}
		return
	}
	defer f.Close()
	for {
		entries, err := f.Readdir(1000)
		if err == io.EOF {
			return
		} else if err != nil {
			// we have no other way of passing this error back
			log.Println("FileSystem List:", err)
			raven.CaptureError(err, map[string]string{"Root": root})
			return
		}
		for _, e := range entries {
			// only decend at most two directories down, and only
			// list files in the second level. 0/1/2
			if e.IsDir() {
				if level == 0 && e.Name() == scratchdir {
					continue
				}
				if level < 2 {
					p := filepath.Join(root, e.Name())
					walkTree(out, p, level+1)
				}
				continue
			}
			if level != 2 {
				continue
			}
			out <- e.Name()
		}
	}
}

// ListPrefix returns a list of all the keys beginning with the given prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	var glob string
	switch len(prefix) {
	case 0:
		glob = "*/*"
	case 1:
		glob = prefix + "*/*"
	case 2:
		glob = prefix[0:2] + "/*"
	case 3:
		glob = prefix[0:2] + "/" + prefix[2:3] + "*"
	default:
		glob = prefix[0:2] + "/" + prefix[2:4]
	}
	glob = filepath.Join(s.root, glob, prefix+"*")
	result, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, p := range result {
		// the scratch directory can match the short globs
		if strings.HasPrefix(p, filepath.Join(s.root, scratchdir)+string(filepath.Separator)) {
			continue
		}
		keys = append(keys, path.Base(filepath.ToSlash(p)))
	}
	return keys, nil
}

// Open returns a reader for the given object along with its size.
// A missing key returns ErrNotExist.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := isKeyValid(key); err != nil {
		return nil, 0, err
	}
	fname := filepath.Join(s.root, itemSubdir(key), key)
	f, err := os.Open(fname)
	if os.IsNotExist(err) {
		return nil, 0, ErrNotExist
	} else if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create creates a new item with the given key, and a writer to allow for
// saving data into the new item. The data is not visible under key until the
// writer is closed.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := isKeyValid(key); err != nil {
		return nil, err
	}
	// first set up the eventual home dir of this file
	target, err := s.setupSubDir(itemSubdir(key), key)
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(target)
	if !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	// now set up the scratch location we will temporarily save the file to.
	// More than one writer may race on the same key, so each gets its own
	// scratch file.
	dir, err := s.setupSubDir(scratchdir, "")
	if err != nil {
		return nil, err
	}
	w, err := ioutil.TempFile(dir, key+"-")
	if err != nil {
		return nil, err
	}
	return &moveCloser{File: w, source: w.Name(), target: target}, nil
}

// setupSubDir makes sure the given subdirectory exists under the root, and
// then returns the absolute path to the keyed file, and an optional error.
// MkdirAll treats a directory which already exists as success, so concurrent
// writers do not trip over each other here.
func (s *FileSystem) setupSubDir(subdir, key string) (string, error) {
	dir := filepath.Join(s.root, subdir)
	err := os.MkdirAll(dir, 0775)
	return filepath.Join(dir, key), err
}

var _ Aborter = &moveCloser{}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	*os.File
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.File.Close()
	if err != nil {
		os.Remove(w.source)
		return err
	}
	_, err = os.Stat(w.target)
	if !os.IsNotExist(err) {
		// someone else finished first
		os.Remove(w.source)
		return ErrKeyExists
	}
	err = os.Rename(w.source, w.target)
	if err != nil {
		os.Remove(w.source)
	}
	return err
}

// Abort removes the scratch file without moving it into place.
func (w *moveCloser) Abort() error {
	w.File.Close()
	return os.Remove(w.source)
}

// Delete the given key from the store. It is not an error if the key doesn't
// exist.
func (s *FileSystem) Delete(key string) error {
	if err := isKeyValid(key); err != nil {
		return err
	}
	fname := filepath.Join(s.root, itemSubdir(key), key)
	err := os.Remove(fname)
	// don't report a missing file as an error
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// Given an item key, return the subdirectory the item's file are stored in
// e.g. "abcdd123" returns "ab/cd/"
func itemSubdir(key string) string {
	var result string
	switch len(key) {
	case 0:
		result = "./"
	case 1:
		result = key + "/"
	case 2:
		result = key + "/"
	case 3:
		result = key[0:2] + "/" + key[2:3] + "/"
	default:
		result = key[0:2] + "/" + key[2:4] + "/"
	}
	return result
}

// Some Simple Item Key Validations
func isKeyValid(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}
	if strings.Contains(key, "/") {
		return ErrKeyContainsSlash
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return ErrKeyContainsWhiteSpace
		}
		if unicode.IsControl(r) {
			return ErrKeyContainsControlChar
		}
	}
	return nil
}
