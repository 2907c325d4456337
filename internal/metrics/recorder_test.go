package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNoopRecorder_SafeOnNil(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveCommitDuration("counter", time.Millisecond)
	r.IncCommit("counter", true)
	r.IncRealtimeUpdate(false)
	r.SetHistoryLength(5)
}

func TestPrometheusRecorder_NilReceiverSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.IncCommit("counter", true)
	p.ObserveSyncCycleDuration(time.Second)
	p.SetPendingUpdates(3)
}

func TestPrometheusRecorder_Counts(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)

	p.IncCommit("projects", true)
	p.IncCommit("projects", true)
	p.IncCommit("projects", false)
	p.IncRealtimeUpdate(false)
	p.SetHistoryLength(7)

	commits := testutil.ToFloat64(p.commits.WithLabelValues("projects", "success"))
	assert.Equal(t, 2.0, commits)
	failures := testutil.ToFloat64(p.commits.WithLabelValues("projects", "failure"))
	assert.Equal(t, 1.0, failures)
	suppressed := testutil.ToFloat64(p.realtimeUpdates.WithLabelValues("suppressed"))
	assert.Equal(t, 1.0, suppressed)
	assert.Equal(t, 7.0, testutil.ToFloat64(p.historyLength))
}
