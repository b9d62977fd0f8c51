package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentCountsRequests(t *testing.T) {
	r := New()
	h := r.Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "418")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	r := New()
	r.Movements.WithLabelValues("MovementPaid").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `webbudget_movement_events_total{event="MovementPaid"} 1`) {
		t.Fatalf("counter missing from exposition:\n%s", rec.Body.String())
	}
}
