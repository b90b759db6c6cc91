package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSubmissionMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSubmissionMetrics(reg)
	m.ObserveSubmission("customer", "created", 250*time.Millisecond)
	m.ObserveSubmission("customer", "created", 50*time.Millisecond)
	m.ObserveSubmission("admin", "failed", time.Second)
	m.IncGateway("draft_order_create", "ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "wishlist_submissions_total", map[string]string{"source": "customer", "status": "created"}); err != nil {
		t.Fatalf("fetch submissions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected created=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "wishlist_gateway_requests_total", map[string]string{"operation": "draft_order_create", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch gateway: %v", err)
	} else if got != 1 {
		t.Fatalf("expected gateway=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "wishlist_submission_duration_seconds", map[string]string{"source": "admin"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1 {
		t.Fatalf("expected admin duration sum 1s, got %f", got)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("submission_resolved")
	m.IncFailed("submission_resolved", true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "wishlist_outbox_failed_total", map[string]string{"event_type": "submission_resolved", "terminal": "true"}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.ObserveRun("outbox-retention", 100*time.Millisecond, nil)
	m.ObserveRun("outbox-retention", 100*time.Millisecond, fmt.Errorf("boom"))
	m.AddRows("outbox-retention", 7)
	m.AddRows("outbox-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "wishlist_job_runs_total", map[string]string{"job": "outbox-retention", "outcome": "failure"}); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "wishlist_job_rows_total", map[string]string{"job": "outbox-retention"}); err != nil {
		t.Fatalf("fetch rows: %v", err)
	} else if got != 7 {
		t.Fatalf("expected rows=7, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewSubmissionMetrics(nil).ObserveSubmission("customer", "created", time.Second)
	NewSubmissionMetrics(nil).IncGateway("", "")
	NewOutboxMetrics(nil).IncPublished("x")
	NewJobMetrics(nil).ObserveRun("x", time.Second, nil)
	var m *SubmissionMetrics
	m.IncGateway("op", "ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
