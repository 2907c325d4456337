package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	commitDuration    *prom.HistogramVec
	commits           *prom.CounterVec
	dispatches        *prom.CounterVec
	syncCycleDuration prom.Histogram
	syncCycles        *prom.CounterVec
	realtimeUpdates   *prom.CounterVec
	crossMerges       prom.Counter
	hydrations        *prom.CounterVec
	historyTruncated  prom.Counter
	historyLength     prom.Gauge
	pendingUpdates    prom.Gauge
	subscribers       prom.Gauge
}

// NewPrometheusRecorder constructs and registers the store metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		commitDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "statecore",
			Name:      "commit_duration_seconds",
			Help:      "Duration of commits including the middleware chain",
			Buckets:   prom.DefBuckets,
		}, []string{"module"}),
		commits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "commits_total",
			Help:      "Commits by module and outcome",
		}, []string{"module", "outcome"}),
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "dispatches_total",
			Help:      "Dispatched actions by type and outcome",
		}, []string{"action", "outcome"}),
		syncCycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "statecore",
			Name:      "sync_cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles",
			Buckets:   prom.DefBuckets,
		}),
		syncCycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "sync_cycles_total",
			Help:      "Reconciliation cycles by outcome",
		}, []string{"outcome"}),
		realtimeUpdates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "realtime_updates_total",
			Help:      "Realtime updates by disposition (applied or suppressed)",
		}, []string{"disposition"}),
		crossMerges: prom.NewCounter(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "cross_instance_merges_total",
			Help:      "Persisted snapshots merged from other instances",
		}),
		hydrations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "hydrations_total",
			Help:      "Boot hydrations by outcome",
		}, []string{"outcome"}),
		historyTruncated: prom.NewCounter(prom.CounterOpts{
			Namespace: "statecore",
			Name:      "history_truncations_total",
			Help:      "Redo branches discarded by commits after time-travel",
		}),
		historyLength: prom.NewGauge(prom.GaugeOpts{
			Namespace: "statecore",
			Name:      "history_length",
			Help:      "Retained history entries",
		}),
		pendingUpdates: prom.NewGauge(prom.GaugeOpts{
			Namespace: "statecore",
			Name:      "sync_pending_updates",
			Help:      "Mutations queued for outbound sync",
		}),
		subscribers: prom.NewGauge(prom.GaugeOpts{
			Namespace: "statecore",
			Name:      "subscribers",
			Help:      "Live path subscriptions",
		}),
	}
	reg.MustRegister(
		pr.commitDuration, pr.commits, pr.dispatches,
		pr.syncCycleDuration, pr.syncCycles,
		pr.realtimeUpdates, pr.crossMerges, pr.hydrations,
		pr.historyTruncated, pr.historyLength,
		pr.pendingUpdates, pr.subscribers,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveCommitDuration(module string, d time.Duration) {
	if p == nil {
		return
	}
	p.commitDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCommit(module string, success bool) {
	if p == nil {
		return
	}
	p.commits.WithLabelValues(module, outcome(success)).Inc()
}

func (p *PrometheusRecorder) IncDispatch(actionType string, success bool) {
	if p == nil {
		return
	}
	p.dispatches.WithLabelValues(actionType, outcome(success)).Inc()
}

func (p *PrometheusRecorder) ObserveSyncCycleDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.syncCycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncCycle(success bool) {
	if p == nil {
		return
	}
	p.syncCycles.WithLabelValues(outcome(success)).Inc()
}

func (p *PrometheusRecorder) IncRealtimeUpdate(applied bool) {
	if p == nil {
		return
	}
	disposition := "applied"
	if !applied {
		disposition = "suppressed"
	}
	p.realtimeUpdates.WithLabelValues(disposition).Inc()
}

func (p *PrometheusRecorder) IncCrossInstanceMerge() {
	if p == nil {
		return
	}
	p.crossMerges.Inc()
}

func (p *PrometheusRecorder) IncHydration(success bool) {
	if p == nil {
		return
	}
	p.hydrations.WithLabelValues(outcome(success)).Inc()
}

func (p *PrometheusRecorder) IncHistoryTruncation() {
	if p == nil {
		return
	}
	p.historyTruncated.Inc()
}

func (p *PrometheusRecorder) SetHistoryLength(n int) {
	if p == nil {
		return
	}
	p.historyLength.Set(float64(n))
}

func (p *PrometheusRecorder) SetPendingUpdates(n int) {
	if p == nil {
		return
	}
	p.pendingUpdates.Set(float64(n))
}

func (p *PrometheusRecorder) SetSubscriberCount(n int) {
	if p == nil {
		return
	}
	p.subscribers.Set(float64(n))
}
