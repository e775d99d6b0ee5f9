package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHealthzOK(t *testing.T) {
	s := NewServer(":0", map[string]HealthFunc{
		"store": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Checks["store"] != "ok" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHealthzFailingCheck(t *testing.T) {
	s := NewServer(":0", map[string]HealthFunc{
		"store": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	s := NewServer(":0", nil)
	ObserveDispatch("start", "ok", 3*time.Millisecond)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "calcbot_dispatch_total") {
		t.Fatal("dispatch counter not exposed")
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal.WithLabelValues("intercept", "send_message", "ok"))
	IncDelivery("intercept", "send_message", "")
	after := testutil.ToFloat64(deliveriesTotal.WithLabelValues("intercept", "send_message", "ok"))
	if after-before != 1 {
		t.Fatalf("delivery counter delta = %v", after-before)
	}

	before = testutil.ToFloat64(storeOps.WithLabelValues("memory", "set", "false"))
	IncStoreOp("memory", "set", errors.New("boom"))
	if got := testutil.ToFloat64(storeOps.WithLabelValues("memory", "set", "false")) - before; got != 1 {
		t.Fatalf("store counter delta = %v", got)
	}

	before = testutil.ToFloat64(updatesTotal.WithLabelValues("callback", "rate_limited"))
	IncUpdate("Callback", "rate_limited")
	if got := testutil.ToFloat64(updatesTotal.WithLabelValues("callback", "rate_limited")) - before; got != 1 {
		t.Fatalf("update counter delta = %v", got)
	}
}
