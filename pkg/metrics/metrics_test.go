package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.ObserveDispatch("path-traversal", "query", 10*time.Millisecond)
	c.ObserveDispatch("path-traversal", "query", 20*time.Millisecond)
	c.ObserveDispatch("path-traversal", "header", 5*time.Millisecond)
	c.IncFinding("reflects-payload", "high")
	c.IncInconclusive("timeout")

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("path-traversal", "query")); got != 2 {
		t.Errorf("requests{query} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("path-traversal", "header")); got != 1 {
		t.Errorf("requests{header} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.findingsTotal.WithLabelValues("reflects-payload", "high")); got != 1 {
		t.Errorf("findings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.inconclusiveTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("inconclusive = %v, want 1", got)
	}

	c.SetScanDuration(3 * time.Second)
	if got := testutil.ToFloat64(c.scanDurationSeconds); got != 3 {
		t.Errorf("scan duration = %v, want 3", got)
	}
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.IncFinding("d", "high")
	if got := testutil.ToFloat64(b.findingsTotal.WithLabelValues("d", "high")); got != 0 {
		t.Errorf("collector b sees collector a's counts: %v", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	c.IncFinding("allow-status", "medium")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "injectest_findings_total") {
		t.Errorf("metrics output missing findings counter:\n%s", body)
	}
}
