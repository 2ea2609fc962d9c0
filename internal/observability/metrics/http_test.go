package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFallbackIncrementsCounter(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordFallback("api")
	m.RecordFallback("api")

	if got := testutil.ToFloat64(m.searchFallback.WithLabelValues("api")); got != 2 {
		t.Fatalf("expected fallback counter 2, got %v", got)
	}
}

func TestRecordRefinementsAddsCount(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordRefinements("api", 2)
	m.RecordRefinements("api", 0)
	m.RecordRefinements("api", -1)
	m.RecordRefinements("api", 1)

	if got := testutil.ToFloat64(m.refinementsTotal.WithLabelValues("api")); got != 3 {
		t.Fatalf("expected refinements counter 3, got %v", got)
	}
}

func TestRecordSearchObservesAllSeries(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordSearch("api", "hybrid", 4, 120*time.Millisecond)
	m.RecordSearch("api", "", 0, time.Millisecond)

	if got := testutil.ToFloat64(m.searchTotal.WithLabelValues("api", "hybrid")); got != 1 {
		t.Fatalf("expected one hybrid search, got %v", got)
	}
	if got := testutil.ToFloat64(m.searchTotal.WithLabelValues("api", "unknown")); got != 1 {
		t.Fatalf("expected blank strategy counted as unknown, got %v", got)
	}
}

func TestRecordCacheLookupLabelsOutcome(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordCacheLookup("api", true)
	m.RecordCacheLookup("api", false)
	m.RecordCacheLookup("api", false)

	if got := testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("api", "hit")); got != 1 {
		t.Fatalf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("api", "miss")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
}
