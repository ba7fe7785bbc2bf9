package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/brands", "200"))
	RecordHTTPRequest("GET", "/brands", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/brands", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestCacheCounters(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	RecordCacheHit()
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")); got != hits+1 {
		t.Errorf("hit counter = %v, want %v", got, hits+1)
	}

	inv := testutil.ToFloat64(cacheInvalidationsTotal)
	RecordInvalidations(3)
	if got := testutil.ToFloat64(cacheInvalidationsTotal); got != inv+3 {
		t.Errorf("invalidations = %v, want %v", got, inv+3)
	}

	SetCacheEntries(7)
	if got := testutil.ToFloat64(cacheEntries); got != 7 {
		t.Errorf("entries gauge = %v, want 7", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordSessionTransition("anonymous", "authenticating")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "aiodash_session_transitions_total") {
		t.Error("expected session transition metric in exposition output")
	}
}
