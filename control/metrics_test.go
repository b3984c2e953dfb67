// File: control/metrics_test.go
// License: Apache-2.0

package control

import "testing"

func TestMetricsRegistry(t *testing.T) {
	mr := NewMetricsRegistry()
	if got := mr.Get(MetricIterations); got != 0 {
		t.Fatalf("fresh counter = %d", got)
	}
	before := mr.Updated()

	mr.Add(MetricIterations, 1)
	mr.Add(MetricIterations, 2)
	mr.Add(MetricEvents, 5)
	if got := mr.Get(MetricIterations); got != 3 {
		t.Fatalf("Get = %d, want 3", got)
	}
	if !mr.Updated().After(before) {
		t.Fatal("Updated not advanced by Add")
	}

	snap := mr.GetSnapshot()
	if snap[MetricIterations] != 3 || snap[MetricEvents] != 5 {
		t.Fatalf("snapshot = %v", snap)
	}
	// Snapshot is a copy, not a live view.
	snap[MetricEvents] = 99
	if got := mr.Get(MetricEvents); got != 5 {
		t.Fatalf("registry mutated through snapshot: %d", got)
	}
}
