package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters_Histograms_InflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Feed route writes a body, so a positive size is observed
	r.GET("/chirps", func(c *gin.Context) {
		c.String(http.StatusOK, `{"chirps":[]}`)
	})

	// Status-only response keeps size at -1 (skipped in the size histogram)
	r.DELETE("/chirps/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines first, so other tests touching the shared registry don't skew us
	baseFeed := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/chirps", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	// Matched route: path label is the route pattern
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chirps", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /chirps -> %d", w.Code)
	}

	// Unmatched route: falls back to the raw URL path label
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /does-not-exist -> %d", w.Code)
	}

	// Body-less response exercises the size<0 skip
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/chirps/abc", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /chirps/abc -> %d", w.Code)
	}

	gotFeed := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/chirps", "200"))
	if gotFeed != baseFeed+1 {
		t.Fatalf("counter /chirps 200 = %v; want %v", gotFeed, baseFeed+1)
	}

	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))
	if got404 != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got404, base404+1)
	}

	// In-flight gauge drains to 0 once requests complete
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}

	// Histogram bucket counts are timing-dependent, so the routes above only
	// need to drive both the latency observation and the size observation
	// (taken for /chirps, skipped for the body-less delete).
}
