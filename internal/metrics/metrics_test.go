package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}
	if _, err := m.Registry.Gather(); err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	m.IncAuthFailures()
	fams, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather after inc failed: %v", err)
	}
	if len(fams) == 0 {
		t.Fatal("expected at least one metric family after increment")
	}
}

func TestRecordEvaluation(t *testing.T) {
	m := New()

	m.RecordEvaluation(true)
	m.RecordEvaluation(true)
	m.RecordEvaluation(false)

	trueCount := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("true"))
	falseCount := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("false"))

	if trueCount != 2 {
		t.Fatalf("expected true count 2, got %v", trueCount)
	}
	if falseCount != 1 {
		t.Fatalf("expected false count 1, got %v", falseCount)
	}
}

func TestIncAuthFailures(t *testing.T) {
	m := New()

	m.IncAuthFailures()
	m.IncAuthFailures()

	if v := testutil.ToFloat64(m.AuthFailuresTotal); v != 2 {
		t.Fatalf("expected auth failures 2, got %v", v)
	}
}

func TestIncAuditFailures(t *testing.T) {
	m := New()

	m.IncAuditFailures()

	if v := testutil.ToFloat64(m.AuditFailuresTotal); v != 1 {
		t.Fatalf("expected audit failures 1, got %v", v)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	m := New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/projects/{projectID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.HTTPMiddleware(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/projects/p1", nil))

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /v1/projects/{projectID}", "404"))
	if count != 1 {
		t.Fatalf("expected request count 1 for matched route, got %v", count)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	count = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	if count != 1 {
		t.Fatalf("expected request count 1 for unmatched route, got %v", count)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncAuthFailures()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Result().Body)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), "switchboard_auth_failures_total") {
		t.Fatal("expected response to contain switchboard_auth_failures_total")
	}
}
