package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedStats int64

func (f fixedStats) InFlight() int64 { return int64(f) }

func TestCollector(t *testing.T) {
	c := NewCollector(fixedStats(3), map[string]string{
		"ffprobe": "definitely-not-a-real-binary-meetbrief",
	})

	expected := `
# HELP meetbrief_submissions_in_flight Submissions currently being processed.
# TYPE meetbrief_submissions_in_flight gauge
meetbrief_submissions_in_flight 3
# HELP meetbrief_tool_available Whether an external media tool resolves in PATH (1) or not (0).
# TYPE meetbrief_tool_available gauge
meetbrief_tool_available{tool="ffprobe"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCollectorNilStats(t *testing.T) {
	c := NewCollector(nil, nil)
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(c); n != 1 {
		t.Errorf("metric count = %d, want 1", n)
	}
}

func TestInstrumentHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Post("/api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"x"}`))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/transcribe", "403"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/transcribe", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/transcribe", "403"))
	if after-before != 1 {
		t.Errorf("http_requests_total delta = %v, want 1", after-before)
	}
}

func TestObserveExternalCall(t *testing.T) {
	ObserveExternalCall("summary", "chat", errors.New("boom"), 2*time.Second)
	ObserveExternalCall("summary", "chat", nil, time.Second)
	if n := testutil.CollectAndCount(ExternalCallDuration); n < 2 {
		t.Errorf("series count = %d, want ok and error series", n)
	}
}
