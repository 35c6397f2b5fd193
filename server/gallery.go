package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/imageloader/imagecache"
	"github.com/ndlib/imageloader/records"
)

// MessageFailed is returned for an image which could not be loaded.
const MessageFailed = "Failed to load image"

type galleryItem struct {
	records.Record
	Failed bool
}

type galleryPage struct {
	Resource
	Items []galleryItem `json:"-"`
}

// GalleryHandler handles requests to GET /
func (s *Server) GalleryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	page := galleryPage{Resource: s.Resource()}
	for _, rec := range page.Records {
		page.Items = append(page.Items, galleryItem{
			Record: rec,
			Failed: s.Memo.IsFailed(rec.CoverageURL),
		})
	}
	writeHTMLorJSON(w, r, galleryTemplate, page)
}

var (
	galleryTemplate = template.Must(template.New("gallery").Parse(`<html>
<head><title>Images</title></head>
<body>
{{ if eq .Status.String "loading" }}
	<p>Loading...</p>
{{ else if eq .Status.String "error" }}
	<p>{{ .Message }}</p>
	<form method="post" action="/refresh"><button type="submit">Retry</button></form>
{{ else }}
<div style="display: grid; grid-template-columns: repeat(3, 1fr); gap: 8px">
{{ range .Items }}
	<div>
	{{ if .Failed }}
		<p>Failed to load image</p>
	{{ else }}
		<img src="/image/{{ .ID }}" alt="{{ .Title }}" style="width: 100%; aspect-ratio: 1; object-fit: cover">
	{{ end }}
	</div>
{{ else }}
	<p>No images</p>
{{ end }}
</div>
{{ end }}
</body>
</html>`))
)

// RefreshHandler handles requests to GET and POST /refresh. Browsers are
// sent back to the gallery.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res := s.Refresh()
	if r.Header.Get("Accept-Encoding") == "application/json" {
		writeHTMLorJSON(w, r, nil, res)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RecordsHandler handles requests to GET /records. It always returns JSON.
func (s *Server) RecordsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res := s.Resource()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	switch res.Status {
	case StatusLoading:
		w.WriteHeader(http.StatusServiceUnavailable)
	case StatusError:
		w.WriteHeader(http.StatusBadGateway)
	}
	json.NewEncoder(w).Encode(res)
}

// ImageHandler handles requests to GET /image/:id. The image is resolved
// unless it has failed before, and a failure is remembered.
func (s *Server) ImageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	rec, ok := s.lookup(id)
	if !ok {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find record")
		return
	}
	src := rec.CoverageURL
	if s.Memo.IsFailed(src) {
		w.WriteHeader(404)
		fmt.Fprintln(w, MessageFailed)
		return
	}
	img, ok := s.Loader.Resolve(src)
	if !ok {
		s.Memo.MarkFailed(src)
		w.WriteHeader(404)
		fmt.Fprintln(w, MessageFailed)
		return
	}
	var buf bytes.Buffer
	err := imagecache.Encode(&buf, img)
	if err != nil {
		log.Println("ImageHandler:", id, err)
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if r.Method == "HEAD" {
		return
	}
	w.Write(buf.Bytes())
}

// ListFailuresHandler handles requests to GET /failures
func (s *Server) ListFailuresHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	writeHTMLorJSON(w, r, failuresTemplate, s.Memo.List())
}

var (
	failuresTemplate = template.Must(template.New("failures").Parse(`<html>
<h1>Failed Images</h1>
<ol>
{{ range . }}
	<li>{{ . }}</li>
{{ else }}
	<li>No Failures</li>
{{ end }}
</ol>
</html>`))
)

// ClearFailuresHandler handles requests to DELETE /failures. Every image
// will be tried again.
func (s *Server) ClearFailuresHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n := s.Memo.Len()
	s.Memo.Clear()
	log.Println("Cleared", n, "failures")
	w.WriteHeader(http.StatusNoContent)
}
