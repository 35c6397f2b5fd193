// Package imagecache resolves images by URL through a chain of caches: an
// in-process memory cache, a persisted disk cache, and finally the network.
//
// A Loader ties the three together. Each tier can be constructed on its own,
// so tests and tools can use them in isolation.
package imagecache

import (
	"image"
	"image/jpeg"
	"io"

	// decoders for the formats image hosts commonly serve
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Quality is the JPEG quality used for images saved to the disk cache.
const Quality = 50

// Encode writes img to w in the disk cache format.
func Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: Quality})
}

// Decode reads an image in any of the registered formats.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}
