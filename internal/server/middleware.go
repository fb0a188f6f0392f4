package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// jsonError is the standard JSON error response body.
type jsonError struct {
	Error string `json:"error"`
}

// timeoutBody is the canned payload http.TimeoutHandler writes when a
// wrapped handler overruns its deadline.
var timeoutBody = func() string {
	b, _ := json.Marshal(jsonError{Error: "request timed out"})
	return string(b)
}()

// withTimeout bounds a handler by the configured write timeout.
// http.TimeoutHandler replies 503 with timeoutBody but leaves
// Content-Type unset, so responses pass through a writer shim that
// labels that one status as JSON.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	inner := h
	if s.testDelay > 0 {
		delay := s.testDelay
		inner = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			h(w, r)
		}
	}
	bounded := http.TimeoutHandler(inner, s.cfg.WriteTimeout, timeoutBody)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounded.ServeHTTP(&timeoutLabelWriter{ResponseWriter: w}, r)
	})
}

// timeoutLabelWriter stamps application/json onto a 503 whose
// Content-Type is still unset when the header is flushed. All other
// statuses pass through untouched, and only the first WriteHeader
// wins.
type timeoutLabelWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *timeoutLabelWriter) WriteHeader(status int) {
	if w.wrote {
		return
	}
	w.wrote = true
	if status == http.StatusServiceUnavailable &&
		w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *timeoutLabelWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
