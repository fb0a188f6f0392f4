package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeoutLabelWriter(t *testing.T) {
	t.Parallel()

	t.Run("LabelsBare503", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &timeoutLabelWriter{ResponseWriter: rec}

		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"timeout"}`))

		assertRecorderStatus(t, rec, http.StatusServiceUnavailable)
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if got := rec.Body.String(); got != `{"error":"timeout"}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("KeepsExplicitContentType", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &timeoutLabelWriter{ResponseWriter: rec}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)

		assertRecorderStatus(t, rec, http.StatusServiceUnavailable)
		if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
			t.Errorf("Content-Type = %q, want text/plain", ct)
		}
	})

	t.Run("LeavesOtherStatusesAlone", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &timeoutLabelWriter{ResponseWriter: rec}

		// An implicit 200 from a bare Write must not pick up the
		// JSON label either.
		w.Write([]byte("ok"))

		assertRecorderStatus(t, rec, http.StatusOK)
		if ct := rec.Header().Get("Content-Type"); ct == "application/json" {
			t.Errorf("Content-Type = %q on a non-timeout status", ct)
		}
	})

	t.Run("FirstWriteHeaderWins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &timeoutLabelWriter{ResponseWriter: rec}

		w.WriteHeader(http.StatusOK)
		w.WriteHeader(http.StatusServiceUnavailable)

		assertRecorderStatus(t, rec, http.StatusOK)
	})
}

func TestWithTimeoutOverrunBecomesJSON503(t *testing.T) {
	t.Parallel()

	srv := testServer(t, 10*time.Millisecond)

	stalled := func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}
	ts := httptest.NewServer(srv.withTimeout(stalled))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertTimeoutResponse(t, resp)
}

// The analytics and record routes sit behind the timeout wrapper; a
// stalled handler on any of them must surface as the JSON 503.
func TestTimeoutCoversAPIRoutes(t *testing.T) {
	t.Parallel()

	srv := testServer(
		t, 10*time.Millisecond,
		withTestDelay(100*time.Millisecond),
	)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{
		"/api/v1/sessions",
		"/api/v1/analytics/distribution",
		"/api/v1/analytics/streak",
	} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("%s: request failed: %v", path, err)
		}
		timedOut := isTimeoutResponse(t, resp)
		resp.Body.Close()
		if !timedOut {
			t.Errorf("%s: want timeout 503, got %d",
				path, resp.StatusCode)
		}
	}
}

// Export streams and static assets are served outside the timeout
// wrapper so large responses are never buffered and cut off.
func TestExportAndSPABypassTimeout(t *testing.T) {
	t.Parallel()

	srv := testServer(t, 5*time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	routes := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/analytics/report/export?format=xml",
			http.StatusBadRequest},
		{"/", http.StatusOK},
	}
	for _, tt := range routes {
		resp, err := ts.Client().Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("%s: request failed: %v", tt.path, err)
		}
		timedOut := isTimeoutResponse(t, resp)
		resp.Body.Close()
		if timedOut {
			t.Errorf("%s: unexpected timeout response", tt.path)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d",
				tt.path, resp.StatusCode, tt.wantStatus)
		}
	}
}
