package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("audiothread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("render-thread", 250*time.Millisecond)
	exporter.RecordTaskPanic("render-thread")
	exporter.RecordQueueDepth("render-thread", 7)
	exporter.RecordTaskRejected("render-thread", "shutdown")

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("render-thread"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("render-thread"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("render-thread", "shutdown"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("render-thread"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("audiothread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("audiothread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("render-thread")
	second.RecordTaskPanic("render-thread")

	// Both exporters must share the registry's collectors.
	panicTotal := testutil.ToFloat64(second.taskPanicTotal.WithLabelValues("render-thread"))
	if panicTotal != 2 {
		t.Fatalf("panic total = %v, want 2", panicTotal)
	}
}

func TestMetricsExporter_EmptyLabelsUseFallback(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("audiothread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskPanic("")
	exporter.RecordTaskRejected("", "")

	if got := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("fallback panic total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("unknown", "unknown")); got != 1 {
		t.Fatalf("fallback rejected total = %v, want 1", got)
	}
}

func TestMetricsExporter_NilReceiverIsSafe(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordTaskDuration("render-thread", time.Millisecond)
	exporter.RecordTaskPanic("render-thread")
	exporter.RecordQueueDepth("render-thread", 1)
	exporter.RecordTaskRejected("render-thread", "shutdown")
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	metric, ok := observer.(prom.Metric)
	if !ok {
		return 0, nil
	}
	var out dto.Metric
	if err := metric.Write(&out); err != nil {
		return 0, err
	}
	return out.GetHistogram().GetSampleCount(), nil
}
