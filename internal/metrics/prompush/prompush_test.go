package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecomdw/internal/metrics"
)

func TestNewBackendValidatesURL(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("job", "not a url"); err == nil {
		t.Fatal("expected error for invalid gateway url")
	}
	if _, err := NewBackend("job", "http://localhost:9091"); err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
}

func TestFlushPushesRegistry(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("nightly-load", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "facts", "status": "ok"})
	b.IncCounter("etl_records_total", 9, metrics.Labels{"kind": "fact_orders"})
	b.ObserveHistogram("etl_step_duration_seconds", 0.25, metrics.Labels{"step": "facts", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !strings.Contains(gotPath, "/job/nightly-load") {
		t.Fatalf("push path = %q, want job grouping", gotPath)
	}
	for _, want := range []string{"etl_step_total", "etl_records_total", "etl_step_duration_seconds"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("pushed body missing %s", want)
		}
	}
}

func TestIgnoredInputs(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	// None of these may panic or register anything unexpected.
	b.IncCounter("unknown", 1, nil)
	b.IncCounter("etl_step_total", -5, metrics.Labels{"step": "x", "status": "ok"})
	b.IncCounter("etl_records_total", 3, metrics.Labels{})
	b.ObserveHistogram("unknown", 1, nil)
	b.ObserveHistogram("etl_step_duration_seconds", -1, metrics.Labels{"step": "x", "status": "ok"})
}
