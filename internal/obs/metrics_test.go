package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/v1/accounts":                     "/v1/accounts",
		"/v1/accounts/01HZX3":              "/v1/accounts/:id",
		"/v1/accounts/01HZX3/transactions": "/v1/accounts/:id/transactions",
		"/v1/loans/abc/payments":           "/v1/loans/:id/payments",
		"/v1/transactions/deposit":         "/v1/transactions/deposit",
		"/v1/transactions?limit=10":        "/v1/transactions",
		"/v1/transfers/interbank":          "/v1/transfers/interbank",
		"/v1/stream/ws":                    "/v1/stream/ws",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := value(t, httpRequestsTotal.WithLabelValues("GET", "/v1/cards/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cards/card-1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cards/card-2", nil))
	after := value(t, httpRequestsTotal.WithLabelValues("GET", "/v1/cards/:id", "418"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests counted under one label, got %v", after-before)
	}
}

func TestSetReady(t *testing.T) {
	SetReady(true)
	if !IsReady() || value(t, ready) != 1 {
		t.Fatal("expected ready")
	}
	SetReady(false)
	if IsReady() || value(t, ready) != 0 {
		t.Fatal("expected not ready")
	}
}

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", c.Desc())
	return 0
}
