package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareIncrementsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()

	r := gin.New()
	r.Use(Middleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/test", "200"))

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	after := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/test", "200"))
	if after != before+1 {
		t.Fatalf("expected request counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestObserveAuthOutcomes(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(loginAttempts.WithLabelValues(OutcomeRejected))
	ObserveLogin(OutcomeRejected)
	if got := testutil.ToFloat64(loginAttempts.WithLabelValues(OutcomeRejected)); got != before+1 {
		t.Fatalf("expected rejected logins to grow by 1, got %v -> %v", before, got)
	}

	before = testutil.ToFloat64(tokenRefreshes.WithLabelValues(OutcomeSuccess))
	ObserveRefresh(OutcomeSuccess)
	if got := testutil.ToFloat64(tokenRefreshes.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected successful refreshes to grow by 1, got %v -> %v", before, got)
	}
}

func TestRegisterExposesMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()
	ObserveReferenceLookup("spells", "upstream")

	r := gin.New()
	Register(r, "/metrics")

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "grimoire_reference_lookups_total") {
		t.Fatalf("expected reference lookup counter in /metrics output")
	}
}
