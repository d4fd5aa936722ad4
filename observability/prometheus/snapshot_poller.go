package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// ThreadSnapshotProvider provides current executor state snapshots.
// *core.Thread satisfies it.
type ThreadSnapshotProvider interface {
	Name() string
	QueueLen() int
	IsClosed() bool
}

// SnapshotPoller periodically exports executor snapshots into Prometheus
// gauges. It complements MetricsExporter: the exporter records events as they
// happen, the poller samples state (queue depth, liveness) at an interval.
type SnapshotPoller struct {
	interval time.Duration

	threadsMu sync.RWMutex
	threads   map[string]ThreadSnapshotProvider

	threadQueueDepth *prom.GaugeVec
	threadClosed     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	queueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "audiothread",
		Name:      "thread_queue_depth",
		Help:      "Queued tasks per executor thread.",
	}, []string{"thread"})
	closed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "audiothread",
		Name:      "thread_closed",
		Help:      "Executor closed state (1=closed, 0=open).",
	}, []string{"thread"})

	var err error
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if closed, err = registerCollector(reg, closed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		threads:          make(map[string]ThreadSnapshotProvider),
		threadQueueDepth: queueDepth,
		threadClosed:     closed,
	}, nil
}

// AddThread adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddThread(provider ThreadSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name := normalizeLabel(provider.Name(), "thread")
	p.threadsMu.Lock()
	p.threads[name] = provider
	p.threadsMu.Unlock()
}

// RemoveThread stops polling the named executor.
func (p *SnapshotPoller) RemoveThread(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "thread")
	p.threadsMu.Lock()
	delete(p.threads, name)
	p.threadsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.threadsMu.RLock()
	defer p.threadsMu.RUnlock()

	for name, provider := range p.threads {
		p.threadQueueDepth.WithLabelValues(name).Set(float64(provider.QueueLen()))
		if provider.IsClosed() {
			p.threadClosed.WithLabelValues(name).Set(1)
		} else {
			p.threadClosed.WithLabelValues(name).Set(0)
		}
	}
}
