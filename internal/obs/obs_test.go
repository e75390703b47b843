package obs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "save", true, 10*time.Millisecond)
	rec.Observe(ctx, "save", true, 5*time.Millisecond)
	rec.Observe(ctx, "save", false, 2*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond) // ignored

	snap := rec.Snapshot()
	if snap.DurationsMS["save"] != 17 {
		t.Fatalf("unexpected duration total %v", snap.DurationsMS)
	}
	if snap.Results["save"]["success"] != 2 || snap.Results["save"]["error"] != 1 {
		t.Fatalf("unexpected results %v", snap.Results)
	}
	if rec.Name() == "" {
		t.Fatal("expected generated export name")
	}
}

func TestExpvarSnapshotIsCopy(t *testing.T) {
	rec := NewExpvarRecorder("")
	rec.Observe(context.Background(), "save", true, time.Millisecond)

	snap := rec.Snapshot()
	snap.Results["save"]["success"] = 99
	if rec.Snapshot().Results["save"]["success"] != 1 {
		t.Fatal("snapshot shares internal state")
	}
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.Observe(context.Background(), "save", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "save", false, 5*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	if !found["flockcore_operations_total"] || !found["flockcore_operation_duration_seconds"] {
		t.Fatalf("expected metric families, got %v", found)
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "reconcile")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "save")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "reconcile" || entries[0].Status != "success" {
		t.Fatalf("unexpected first span %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("unexpected second span %+v", entries[1])
	}
	if !strings.Contains(buf.String(), `"operation":"reconcile"`) {
		t.Fatalf("spans not serialized: %s", buf.String())
	}
}

func TestSlogLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	logger.Debug("dbg", "k", "v")
	logger.Info("inf", "count", 3)
	logger.Warn("wrn")
	logger.Error("err", "cause", "boom")

	out := buf.String()
	for _, want := range []string{"dbg", "inf", "count=3", "wrn", "cause=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}
