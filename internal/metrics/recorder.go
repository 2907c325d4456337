// Package metrics defines the store's observability hooks and their
// Prometheus implementation.
package metrics

import "time"

// Recorder defines observability hooks for store operations.
// Implementations must tolerate nil receivers so injection stays optional.
type Recorder interface {
	ObserveCommitDuration(module string, d time.Duration)
	IncCommit(module string, success bool)
	IncDispatch(actionType string, success bool)
	ObserveSyncCycleDuration(d time.Duration)
	IncSyncCycle(success bool)
	IncRealtimeUpdate(applied bool) // applied=false means echo-suppressed
	IncCrossInstanceMerge()
	IncHydration(success bool)
	IncHistoryTruncation()
	SetHistoryLength(n int)
	SetPendingUpdates(n int)
	SetSubscriberCount(n int)
}

// NoopRecorder is a Recorder that does nothing; the default when metrics
// are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveCommitDuration(string, time.Duration) {}
func (NoopRecorder) IncCommit(string, bool)                      {}
func (NoopRecorder) IncDispatch(string, bool)                    {}
func (NoopRecorder) ObserveSyncCycleDuration(time.Duration)      {}
func (NoopRecorder) IncSyncCycle(bool)                           {}
func (NoopRecorder) IncRealtimeUpdate(bool)                      {}
func (NoopRecorder) IncCrossInstanceMerge()                      {}
func (NoopRecorder) IncHydration(bool)                           {}
func (NoopRecorder) IncHistoryTruncation()                       {}
func (NoopRecorder) SetHistoryLength(int)                        {}
func (NoopRecorder) SetPendingUpdates(int)                       {}
func (NoopRecorder) SetSubscriberCount(int)                      {}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
