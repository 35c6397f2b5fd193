package store

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestItemSubdir(t *testing.T) {
	var table = []struct{ input, output string }{
		{"x", "x/"},
		{"xy", "xy/"},
		{"xyz", "xy/z/"},
		{"wxyz", "wx/yz/"},
		{"vwxyz", "vw/xy/"},
		{"b930agg8z", "b9/30/"},
	}
	for _, s := range table {
		result := itemSubdir(s.input)
		if result != s.output {
			t.Errorf("Got %s, expected %s", result, s.output)
		}
	}
}

func TestListPrefix(t *testing.T) {
	var files = []string{
		"ab/",
		"ab/cd/",
		"ab/cd/abcd0001",
		"ab/cd/abcd0002",
		"ab/cd/abcdef01",
		"ab/ce/",
		"ab/ce/abce0001",
		"ab/f0/",
		"ab/f0/abf00001",
		"ac/",
		"ac/12/",
		"ac/12/ac120001",
		"bc/",
		"bc/de/",
		"bc/de/bcde0001",
		"scratch/",
		"scratch/abcd0003-123",
	}
	var table = []struct {
		prefix   string
		expected []string
	}{
		{"", []string{
			"abcd0001",
			"abcd0002",
			"abcdef01",
			"abce0001",
			"abf00001",
			"ac120001",
			"bcde0001",
		}},
		{"a", []string{
			"abcd0001",
			"abcd0002",
			"abcdef01",
			"abce0001",
			"abf00001",
			"ac120001",
		}},
		{"ab", []string{
			"abcd0001",
			"abcd0002",
			"abcdef01",
			"abce0001",
			"abf00001",
		}},
		{"abc", []string{
			"abcd0001",
			"abcd0002",
			"abcdef01",
			"abce0001",
		}},
		{"abcd", []string{
			"abcd0001",
			"abcd0002",
			"abcdef01",
		}},
		{"abcde", []string{
			"abcdef01",
		}},
	}
	dir := makeTmpTree(files)
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)
	for _, tab := range table {
		t.Logf("Trying prefix %s", tab.prefix)
		result, err := s.ListPrefix(tab.prefix)
		sort.Strings(result)
		if err != nil {
			t.Errorf("Got unexpected error: %s", err.Error())
		} else if !equal(tab.expected, result) {
			t.Errorf("Got result %v, expected %v", result, tab.expected)
		}
	}
}

func TestWalkTree(t *testing.T) {
	var files = []string{
		"a/",
		"a/b/",
		"a/b/xyz-0001-1",
		"a/b/xyz-0002-1",
		"a/b/qwe-0001-2",
		"a/b/qwe-0002-1",
		"a/c/",
		"a/c/asd-0001-1",
		"a/c/asd-0002-1",
		"a/c/asd-0003-2",
		"scratch/",
		"scratch/zzz-1",
	}
	var goal = []string{
		"xyz-0001-1",
		"xyz-0002-1",
		"qwe-0001-2",
		"qwe-0002-1",
		"asd-0001-1",
		"asd-0002-1",
		"asd-0003-2",
	}
	dir := makeTmpTree(files)
	defer os.RemoveAll(dir)
	c := make(chan string)
	go walkTree(c, dir, 0)
	var result []string
	for name := range c {
		result = append(result, name)
		t.Log(name)
	}
	if len(result) != len(goal) {
		t.Errorf("Got %d keys, expected %d", len(result), len(goal))
	}
}

func TestListMissingRoot(t *testing.T) {
	s := NewFileSystem("/nonexistent/path/for/imageloader")
	var n int
	for range s.List() {
		n++
	}
	if n != 0 {
		t.Errorf("Got %d keys, expected none", n)
	}
}

func TestCreateOpen(t *testing.T) {
	dir, _ := ioutil.TempDir("", "")
	defer os.RemoveAll(dir)
	s := NewFileSystem(filepath.Join(dir, "not", "yet", "here"))

	const key = "0123456789abcdef"
	w, err := s.Create(key)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("hello world"))
	// not visible until closed
	if _, _, err := s.Open(key); err != ErrNotExist {
		t.Errorf("Open before close got %v, expected ErrNotExist", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	rac, size, err := s.Open(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rac.Close()
	if size != 11 {
		t.Errorf("Got size %d, expected 11", size)
	}
	data, _ := ioutil.ReadAll(NewReader(rac))
	if string(data) != "hello world" {
		t.Errorf("Got %q, expected %q", data, "hello world")
	}
	if _, err := s.Create(key); err != ErrKeyExists {
		t.Errorf("Second Create got %v, expected ErrKeyExists", err)
	}
	// nothing left behind in the scratch directory
	left, _ := ioutil.ReadDir(filepath.Join(s.Root(), scratchdir))
	if len(left) != 0 {
		t.Errorf("Scratch directory has %d files", len(left))
	}
	if err := s.Delete(key); err != nil {
		t.Error(err)
	}
	if err := s.Delete(key); err != nil {
		t.Error("Deleting a missing key:", err)
	}
}

func TestConcurrentCreate(t *testing.T) {
	dir, _ := ioutil.TempDir("", "")
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)

	const key = "fedcba9876543210"
	var wg sync.WaitGroup
	var m sync.Mutex
	var nok int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.Create(key)
			if err == ErrKeyExists {
				return
			} else if err != nil {
				t.Error(err)
				return
			}
			fmt.Fprintf(w, "writer %d", i)
			err = w.Close()
			if err == nil {
				m.Lock()
				nok++
				m.Unlock()
			} else if err != ErrKeyExists {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if nok == 0 {
		t.Error("No writer succeeded")
	}
	rac, _, err := s.Open(key)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := ioutil.ReadAll(NewReader(rac))
	rac.Close()
	if !strings.HasPrefix(string(data), "writer ") {
		t.Errorf("Got %q", data)
	}
}

func TestBadKeys(t *testing.T) {
	s := NewFileSystem(os.TempDir())
	var table = []struct {
		key string
		err error
	}{
		{"", ErrEmptyKey},
		{"ab/cd", ErrKeyContainsSlash},
		{"ab cd", ErrKeyContainsWhiteSpace},
		{"ab\x01cd", ErrKeyContainsControlChar},
		{"ab\xffcd", ErrKeyContainsNonUnicode},
	}
	for _, tab := range table {
		_, err := s.Create(tab.key)
		if err != tab.err {
			t.Errorf("Key %q: got %v, expected %v", tab.key, err, tab.err)
		}
	}
}

// returns abs path to the root of the new tree.
// remember to delete the new directory when finished.
func makeTmpTree(files []string) string {
	var data []byte
	root, _ := ioutil.TempDir("", "")
	for _, s := range files {
		var err error
		p := filepath.Join(root, s)
		if strings.HasSuffix(s, "/") {
			err = os.Mkdir(p, 0777)
		} else {
			err = ioutil.WriteFile(p, data, 0777)
		}
		if err != nil {
			fmt.Println(err)
		}
	}
	return root
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAbort(t *testing.T) {
	dir, _ := ioutil.TempDir("", "")
	defer os.RemoveAll(dir)
	fs := NewFileSystem(dir)

	for _, s := range []Store{fs, NewMemory()} {
		const key = "0123456789abcdef"
		w, err := s.Create(key)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("half of an ima"))
		if err := Abort(w); err != nil {
			t.Errorf("%T: Abort got %v", s, err)
		}
		if _, _, err := s.Open(key); err != ErrNotExist {
			t.Errorf("%T: Open after Abort got %v, expected ErrNotExist", s, err)
		}
		// the key can still be written
		w, err = s.Create(key)
		if err != nil {
			t.Fatalf("%T: Create after Abort got %v", s, err)
		}
		w.Write([]byte("whole"))
		if err := w.Close(); err != nil {
			t.Errorf("%T: Close got %v", s, err)
		}
	}
	left, _ := ioutil.ReadDir(filepath.Join(fs.Root(), scratchdir))
	if len(left) != 0 {
		t.Errorf("Scratch directory has %d files", len(left))
	}
}
