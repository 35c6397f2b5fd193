package server

import (
	"encoding/json"
	"expvar"
	"fmt"
	"html/template"
	"image"
	"log"
	"net/http"
	_ "net/http/pprof" // for pprof server
	"sync"

	"github.com/facebookgo/httpdown"
	"github.com/facebookgo/stats"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/imageloader/failmemo"
	"github.com/ndlib/imageloader/records"
)

// A RecordLister returns the records to show in the gallery.
type RecordLister interface {
	List() ([]records.Record, error)
}

// A Resolver finds the image for a source URL.
type Resolver interface {
	Resolve(src string) (image.Image, bool)
}

// Server is the image gallery. It shows the record list and serves the
// image for each record through the Loader.
//
// Set the public fields and then call Run. Run will listen on the given port
// and handle requests. Do not change any fields after calling Run.
type Server struct {
	// Port number to listen on. defaults to 14000
	PortNumber string
	PProfPort  string

	// Records supplies the gallery contents. Run will panic if it is nil.
	Records RecordLister

	// Loader resolves images. Run will panic if it is nil.
	Loader Resolver

	// Memo remembers images which failed to load so they are not asked for
	// again. If nil, a memo which never forgets is used.
	Memo *failmemo.Memo

	// Stats, if not nil, receives the http server counters.
	Stats stats.Client

	server httpdown.Server // used to close our listening socket

	m     sync.RWMutex
	state Resource
}

// Run loads the record list in the background and then blocks listening
// for and handling http requests.
func (s *Server) Run() error {
	log.Println("==========")
	log.Printf("Starting Image Loader version %s", Version)

	if s.Records == nil {
		panic("No record source given. Records is nil.")
	}
	if s.Loader == nil {
		panic("No image loader given. Loader is nil.")
	}
	if s.PortNumber == "" {
		s.PortNumber = "14000"
	}
	go s.Refresh()

	// for pprof
	if s.PProfPort != "" {
		log.Println("Starting PProf on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}
	log.Println("Listening on", s.PortNumber)

	h := httpdown.HTTP{Stats: s.Stats}
	var err error
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: s.Handler(),
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// Stop will stop the server and return when all the server goroutines have
// exited and the socket closed.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Stop()
}

// Handler returns the routes of the server. It is exposed for tests, and
// for embedding the gallery in another server.
func (s *Server) Handler() http.Handler {
	if s.Memo == nil {
		s.Memo = failmemo.New(0)
	}
	var routes = []struct {
		method  string
		route   string
		handler httprouter.Handle
	}{
		{"GET", "/", s.GalleryHandler},
		{"GET", "/refresh", s.RefreshHandler},
		{"POST", "/refresh", s.RefreshHandler},
		{"GET", "/records", s.RecordsHandler},
		{"GET", "/image/:id", s.ImageHandler},
		{"HEAD", "/image/:id", s.ImageHandler},
		{"GET", "/failures", s.ListFailuresHandler},
		{"DELETE", "/failures", s.ClearFailuresHandler},

		// other
		{"GET", "/version", VersionHandler},
		{"GET", "/debug/vars", VarHandler}, // standard route for expvars data
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method, route.route, logWrapper(route.handler))
	}
	return r
}

// General route handlers and convinence functions

// VersionHandler returns the version of this server.
func VersionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "Image Loader (%s)\n", Version)
}

// VarHandler adapts the expvar default handler to the httprouter three parameter handler.
func VarHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// this code is taken from the stdlib expvar package.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprintf(w, ",\n")
		}
		first = false
		fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
	})
	fmt.Fprintf(w, "\n}\n")
}

// writeHTMLorJSON will either return val as JSON or as rendered using the
// given template, depending on the request header "Accept-Encoding".
func writeHTMLorJSON(w http.ResponseWriter,
	r *http.Request,
	tmpl *template.Template,
	val interface{}) {

	if r.Header.Get("Accept-Encoding") == "application/json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(val)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := tmpl.Execute(w, val)
	if err != nil {
		log.Println("template", tmpl.Name(), err)
	}
}

// logWrapper takes a handler and returns a handler which does the same thing,
// after first logging the request URL.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.URL)
		handler(w, r, ps)
	}
}
