package server

import (
	"log"

	"github.com/pkg/errors"

	"github.com/ndlib/imageloader/records"
)

// Status is where the record list is in being loaded.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// MarshalText lets the status appear by name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resource is the state of the record list. Records is set on success, and
// Message on error.
type Resource struct {
	Status  Status
	Records []records.Record `json:",omitempty"`
	Message string           `json:",omitempty"`
}

// MessageNoInternet is shown when the records cannot be fetched and there is
// no saved copy to show instead.
const MessageNoInternet = "No internet connection"

// Resource returns the current state of the record list.
func (s *Server) Resource() Resource {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.state
}

// Refresh reloads the record list. It blocks until the load finishes.
func (s *Server) Refresh() Resource {
	s.m.Lock()
	if s.state.Status != StatusSuccess {
		s.state = Resource{Status: StatusLoading}
	}
	s.m.Unlock()

	var next Resource
	list, err := s.Records.List()
	switch {
	case err == nil:
		next = Resource{Status: StatusSuccess, Records: list}
	case errors.Cause(err) == records.ErrOffline:
		log.Println("Refresh:", err)
		next = Resource{Status: StatusError, Message: MessageNoInternet}
	default:
		log.Println("Refresh:", err)
		next = Resource{Status: StatusError, Message: err.Error()}
	}

	s.m.Lock()
	s.state = next
	s.m.Unlock()
	return next
}

// lookup returns the record with the given id from the current list.
func (s *Server) lookup(id string) (records.Record, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	for _, r := range s.state.Records {
		if r.ID == id {
			return r, true
		}
	}
	return records.Record{}, false
}
