package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected generated expvar name")
	}

	ctx := context.Background()
	recorder.Observe(ctx, "checkpoint", true, 20*time.Millisecond)
	recorder.Observe(ctx, "checkpoint", true, 30*time.Millisecond)
	recorder.Observe(ctx, "undo", false, 5*time.Millisecond)
	recorder.Observe(ctx, "", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["checkpoint"] < 50 {
		t.Fatalf("checkpoint duration total = %v", snapshot.DurationsMS["checkpoint"])
	}
	if snapshot.Results["checkpoint"]["success"] != 2 {
		t.Fatalf("checkpoint successes = %d", snapshot.Results["checkpoint"]["success"])
	}
	if snapshot.Results["undo"]["error"] != 1 {
		t.Fatalf("undo errors = %d", snapshot.Results["undo"]["error"])
	}
	if _, ok := snapshot.Results[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}
}

func TestExpvarSnapshotIsDetached(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	recorder.Observe(context.Background(), "save", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	snapshot.Results["save"]["success"] = 99

	if recorder.Snapshot().Results["save"]["success"] != 1 {
		t.Fatalf("snapshot mutation leaked into the recorder")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ctx := context.Background()
	recorder.Observe(ctx, "checkpoint", true, 10*time.Millisecond)
	recorder.Observe(ctx, "undo", false, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected counter and histogram families, got %d", len(families))
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	if !seen["chronicle_history_operations_total"] || !seen["chronicle_history_operation_duration_seconds"] {
		t.Fatalf("unexpected metric families %v", seen)
	}
}

func TestPrometheusRecorderRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
