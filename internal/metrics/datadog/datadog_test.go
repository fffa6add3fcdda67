package datadog

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"retailetl/internal/metrics"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName: "retail_sales",
		// A very long tick keeps the background loop quiet; tests flush
		// explicitly.
		FlushEvery: time.Hour,
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		newTicker:  time.NewTicker,
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestFlushSubmitsBufferedSeries(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("import_step_total", 1, metrics.Labels{"step": "parse", "status": "success"})
	b.IncCounter("import_records_total", 42, metrics.Labels{"kind": "read"})
	b.ObserveHistogram("import_step_duration_seconds", 1.5, metrics.Labels{"step": "parse", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("payloads = %d, want 1", sub.count())
	}

	var names []string
	for _, s := range sub.payloads[0].Series {
		names = append(names, s.Metric)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{
		"import.step.total",
		"import.records.total",
		"import.step.duration_seconds.p50",
		"import.step.duration_seconds.max",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("series missing %s: %v", want, names)
		}
	}
}

func TestFlushEmptySubmitsNothing(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Errorf("payloads = %d, want 0", sub.count())
	}
}

func TestFlushResetsBuffersEvenOnError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("import_records_total", 1, metrics.Labels{"kind": "read"})
	if err := b.Flush(); err == nil {
		t.Fatalf("expected submission error")
	}

	// Second flush has nothing left to submit.
	sub.err = nil
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Errorf("payloads = %d, want 1", sub.count())
	}
}

func TestCloseFlushesTail(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("import_step_total", 1, metrics.Labels{"step": "load", "status": "success"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sub.count() != 1 {
		t.Errorf("payloads = %d, want 1", sub.count())
	}
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	if got := percentileNearestRank(s, 0.5); got != 3 {
		t.Errorf("p50 = %v, want 3", got)
	}
	if got := percentileNearestRank(s, 1); got != 5 {
		t.Errorf("p100 = %v, want 5", got)
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Errorf("empty = %v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod , service:import ,,")
	if len(got) != 2 || got[0] != "env:prod" || got[1] != "service:import" {
		t.Errorf("ParseTagsCSV = %v", got)
	}
	if got := ParseTagsCSV(""); got != nil {
		t.Errorf("ParseTagsCSV empty = %v", got)
	}
}
