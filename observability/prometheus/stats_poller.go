package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/tidegate/jobgraph/core"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// StatsPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type StatsPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	queued    *prom.GaugeVec
	inflight  *prom.GaugeVec
	busy      *prom.GaugeVec
	workers   *prom.GaugeVec
	arenaUsed *prom.GaugeVec
	arenaCap  *prom.GaugeVec
	running   *prom.GaugeVec
	paused    *prom.GaugeVec

	stateMu sync.Mutex
	polling bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStatsPoller creates a stats poller and registers its collectors.
func NewStatsPoller(reg prom.Registerer, interval time.Duration) (*StatsPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	queued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "ready_queue_depth",
		Help:      "Jobs waiting in the ready queue per scheduler.",
	}, []string{"scheduler"})
	inflight := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "jobs_inflight",
		Help:      "Jobs of the current graph not yet completed.",
	}, []string{"scheduler"})
	busy := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "workers_busy",
		Help:      "Workers currently executing a job body.",
	}, []string{"scheduler"})
	workers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "workers",
		Help:      "Worker count per scheduler.",
	}, []string{"scheduler"})
	arenaUsed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "arena_used_bytes",
		Help:      "Scratch arena bytes charged against the budget.",
	}, []string{"scheduler"})
	arenaCap := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "arena_capacity_bytes",
		Help:      "Scratch arena byte budget.",
	}, []string{"scheduler"})
	running := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "running",
		Help:      "Scheduler running state (1=running, 0=stopped).",
	}, []string{"scheduler"})
	paused := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobgraph",
		Name:      "paused",
		Help:      "Scheduler paused state (1=paused, 0=dispatching).",
	}, []string{"scheduler"})

	var err error
	if queued, err = registerCollector(reg, queued); err != nil {
		return nil, err
	}
	if inflight, err = registerCollector(reg, inflight); err != nil {
		return nil, err
	}
	if busy, err = registerCollector(reg, busy); err != nil {
		return nil, err
	}
	if workers, err = registerCollector(reg, workers); err != nil {
		return nil, err
	}
	if arenaUsed, err = registerCollector(reg, arenaUsed); err != nil {
		return nil, err
	}
	if arenaCap, err = registerCollector(reg, arenaCap); err != nil {
		return nil, err
	}
	if running, err = registerCollector(reg, running); err != nil {
		return nil, err
	}
	if paused, err = registerCollector(reg, paused); err != nil {
		return nil, err
	}

	return &StatsPoller{
		interval:   interval,
		schedulers: make(map[string]SchedulerSnapshotProvider),
		queued:     queued,
		inflight:   inflight,
		busy:       busy,
		workers:    workers,
		arenaUsed:  arenaUsed,
		arenaCap:   arenaCap,
		running:    running,
		paused:     paused,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *StatsPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *StatsPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.polling {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.polling = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *StatsPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.polling {
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
	p.polling = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *StatsPoller) loop(ctx context.Context) {
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

func (p *StatsPoller) collectOnce() {
	p.schedulersMu.RLock()
	defer p.schedulersMu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.queued.WithLabelValues(name).Set(float64(stats.Queued))
		p.inflight.WithLabelValues(name).Set(float64(stats.Inflight))
		p.busy.WithLabelValues(name).Set(float64(stats.Busy))
		p.workers.WithLabelValues(name).Set(float64(stats.Workers))
		p.arenaUsed.WithLabelValues(name).Set(float64(stats.ArenaUsed))
		p.arenaCap.WithLabelValues(name).Set(float64(stats.ArenaCap))
		p.running.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.paused.WithLabelValues(name).Set(boolGauge(stats.Paused))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
