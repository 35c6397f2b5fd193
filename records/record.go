// Package records fetches the list of image records shown in the gallery.
//
// The list comes from a remote JSON API. Each successful response is kept as
// a snapshot, and when the API cannot be reached the most recent snapshot is
// used instead, provided it is not too old.
package records

import (
	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
)

// A Record describes one media coverage item. CoverageURL names the image
// displayed for it.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	Thumbnail   Thumbnail `json:"thumbnail"`
	MediaType   int64     `json:"mediaType"`
	CoverageURL string    `json:"coverageURL"`
	PublishedAt string    `json:"publishedAt"`
	PublishedBy string    `json:"publishedBy"`
	Backup      Backup    `json:"backupDetails"`
}

type Thumbnail struct {
	ID          string  `json:"id"`
	Version     int64   `json:"version"`
	Domain      string  `json:"domain"`
	BasePath    string  `json:"basePath"`
	Key         string  `json:"key"`
	Qualities   []int64 `json:"qualities"`
	AspectRatio float64 `json:"aspectRatio"`
}

type Backup struct {
	PDFLink       string `json:"pdfLink"`
	ScreenshotURL string `json:"screenshotURL"`
}

// Parse decodes a response body into records. The body must be a JSON
// array of objects. Missing or mistyped fields are left empty, since the API
// does not fill in every field for every record.
func Parse(body []byte) ([]Record, error) {
	v, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, errors.Wrap(ErrBadResponse, err.Error())
	}
	list, err := v.Array()
	if err != nil {
		return nil, errors.Wrap(ErrBadResponse, err.Error())
	}
	result := make([]Record, 0, len(list))
	for i, e := range list {
		obj, err := e.Object()
		if err != nil {
			return nil, errors.Wrapf(ErrBadResponse, "element %d: %s", i, err)
		}
		result = append(result, parseRecord(obj))
	}
	return result, nil
}

func parseRecord(v *jason.Object) Record {
	var r Record
	r.ID, _ = v.GetString("id")
	r.Title, _ = v.GetString("title")
	r.Language, _ = v.GetString("language")
	r.MediaType, _ = v.GetInt64("mediaType")
	r.CoverageURL, _ = v.GetString("coverageURL")
	r.PublishedAt, _ = v.GetString("publishedAt")
	r.PublishedBy, _ = v.GetString("publishedBy")
	r.Backup.PDFLink, _ = v.GetString("backupDetails", "pdfLink")
	r.Backup.ScreenshotURL, _ = v.GetString("backupDetails", "screenshotURL")
	if t, err := v.GetObject("thumbnail"); err == nil {
		r.Thumbnail.ID, _ = t.GetString("id")
		r.Thumbnail.Version, _ = t.GetInt64("version")
		r.Thumbnail.Domain, _ = t.GetString("domain")
		r.Thumbnail.BasePath, _ = t.GetString("basePath")
		r.Thumbnail.Key, _ = t.GetString("key")
		r.Thumbnail.Qualities, _ = t.GetInt64Array("qualities")
		r.Thumbnail.AspectRatio, _ = t.GetFloat64("aspectRatio")
	}
	return r
}
