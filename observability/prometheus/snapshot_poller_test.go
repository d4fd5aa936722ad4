package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/soniclabs/audiothread/core"
)

type threadStub struct {
	name     string
	queueLen int
	closed   bool
}

func (s threadStub) Name() string   { return s.name }
func (s threadStub) QueueLen() int  { return s.queueLen }
func (s threadStub) IsClosed() bool { return s.closed }

func TestSnapshotPoller_CollectsThreadState(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddThread(threadStub{name: "render-thread", queueLen: 3, closed: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		depth := testutil.ToFloat64(poller.threadQueueDepth.WithLabelValues("render-thread"))
		closed := testutil.ToFloat64(poller.threadClosed.WithLabelValues("render-thread"))
		return depth == 3 && closed == 1
	})
}

func TestSnapshotPoller_RemoveThreadStopsUpdates(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddThread(threadStub{name: "render-thread", queueLen: 5})
	poller.Start(context.Background())

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.threadQueueDepth.WithLabelValues("render-thread")) == 5
	})

	poller.RemoveThread("render-thread")
	poller.Stop()

	// The gauge keeps its last value but no longer tracks the provider.
	poller.threadQueueDepth.WithLabelValues("render-thread").Set(0)
	poller.collectOnce()
	if got := testutil.ToFloat64(poller.threadQueueDepth.WithLabelValues("render-thread")); got != 0 {
		t.Fatalf("removed thread gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_PollsRealThread(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	thread, err := core.NewThreadWithConfig(&core.Config{Name: "polled"})
	if err != nil {
		t.Fatalf("NewThreadWithConfig failed: %v", err)
	}

	poller.AddThread(thread)
	poller.Start(context.Background())
	defer poller.Stop()

	if err := thread.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.threadClosed.WithLabelValues("polled")) == 1
	})
}

func TestSnapshotPoller_StartStopIdempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.Start(context.Background())
	poller.Start(context.Background())
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
