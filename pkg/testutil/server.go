package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Reply is a canned response served for one path.
type Reply struct {
	Status int
	Body   string
}

// APIServer is an httptest server answering each path with a fixed reply
// and recording the requests it saw.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string]Reply
	requests []RecordedRequest
}

// RecordedRequest is a request as seen by APIServer.
type RecordedRequest struct {
	Method string
	Path   string
	Body   string
}

// NewAPIServer starts a server; unknown paths get 404 with a JSON message.
func NewAPIServer(replies map[string]Reply) *APIServer {
	s := &APIServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *APIServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	reply, ok := s.replies[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: `{"message":"Not Found"}`}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = io.WriteString(w, reply.Body)
}

// Requests returns a copy of the recorded requests
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
