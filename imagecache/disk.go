package imagecache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"hash/fnv"
	"image"
	"io"
	"log"

	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/imageloader/blobcache"
	"github.com/ndlib/imageloader/store"
)

// Disk is the persisted image cache. Images are saved as JPEG files named by
// the Key of their source URL. Entries survive restarts and are never updated
// once written.
type Disk struct {
	cache blobcache.Cache
}

// NewDisk returns a disk cache saving its files into c. Use a
// blobcache.Unbounded for a cache which never evicts, or a blobcache.T to
// bound the space used.
func NewDisk(c blobcache.Cache) *Disk {
	return &Disk{cache: c}
}

// newDigest is replaceable so the fallback path can be tested.
var newDigest = func() hash.Hash { return md5.New() }

// Key returns the file name used for src: the lowercase hex MD5 digest of
// its bytes. Two URLs may collide; this is not detected. Should the digest
// fail the key is the hex FNV-1a hash of src instead.
func Key(src string) string {
	h := newDigest()
	if _, err := io.WriteString(h, src); err != nil {
		log.Println("Key: digest failed, using fnv:", err)
		h = fnv.New64a()
		io.WriteString(h, src)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached image for src. A missing entry and an entry which
// cannot be decoded are both reported as absent. An undecodable entry is
// removed so a later Put can replace it.
func (d *Disk) Get(src string) (image.Image, bool) {
	key := Key(src)
	rac, _, err := d.cache.Get(key)
	if err != nil {
		log.Println("Disk Get:", key, err)
		return nil, false
	}
	if rac == nil {
		return nil, false
	}
	img, err := Decode(store.NewReader(rac))
	rac.Close()
	if err != nil {
		log.Printf("Disk Get: %s: corrupt entry for %s: %s", key, src, err)
		d.cache.Delete(key)
		return nil, false
	}
	return img, true
}

// Contains returns true if there is an entry for src. It does not check
// whether the entry decodes.
func (d *Disk) Contains(src string) bool {
	return d.cache.Contains(Key(src))
}

// Put saves img as the entry for src. Errors are logged and otherwise
// ignored. If an entry for src already exists it is left as is, since the
// image is the same.
func (d *Disk) Put(src string, img image.Image) {
	if img == nil {
		return
	}
	key := Key(src)
	var buf bytes.Buffer
	err := Encode(&buf, img)
	if err != nil {
		log.Println("Disk Put: encode", key, err)
		return
	}
	err = d.write(key, buf.Bytes())
	if err == store.ErrKeyExists {
		return
	}
	if err != nil {
		log.Println("Disk Put:", key, err)
		raven.CaptureError(err, map[string]string{"Key": key, "URL": src})
	}
}

func (d *Disk) write(key string, data []byte) error {
	w, err := d.cache.Put(key)
	if err != nil {
		return err
	}
	if _, err = w.Write(data); err != nil {
		store.Abort(w)
		return err
	}
	return w.Close()
}

// Delete removes the entry for src, if any.
func (d *Disk) Delete(src string) error {
	return d.cache.Delete(Key(src))
}
