package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordStrategyRunAndDedupDroppedAreScrapeable(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordStrategyRun("api", "original")
	m.RecordStrategyRun("api", "original")
	m.RecordStrategyRun("api", "expanded")
	m.RecordDedupDropped("api", 5)
	m.RecordDedupDropped("api", 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	text := string(body)

	if !strings.Contains(text, `docchat_search_strategy_runs_total{service="api",strategy="original"} 2`) {
		t.Fatalf("missing strategy counter:\n%s", text)
	}
	if !strings.Contains(text, `docchat_search_strategy_runs_total{service="api",strategy="expanded"} 1`) {
		t.Fatalf("missing strategy counter:\n%s", text)
	}
	if !strings.Contains(text, `docchat_search_dedup_dropped_total{service="api"} 5`) {
		t.Fatalf("missing dedup counter:\n%s", text)
	}
}

func TestObserveQueueLagIsScrapeable(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.ObserveQueueLag("worker", 2*time.Second)
	m.ObserveQueueLag("worker", -1*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	text := string(body)

	if !strings.Contains(text, `docchat_worker_queue_lag_seconds_count{service="worker"} 1`) {
		t.Fatalf("negative lag must be ignored:\n%s", text)
	}
	if !strings.Contains(text, `docchat_worker_queue_lag_seconds_sum{service="worker"} 2`) {
		t.Fatalf("missing lag sum:\n%s", text)
	}
}
