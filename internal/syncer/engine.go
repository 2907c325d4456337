package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.ecosistema.dev/plataforma/statecore/internal/events"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/metrics"
	"git.ecosistema.dev/plataforma/statecore/internal/observability"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
	"git.ecosistema.dev/plataforma/statecore/internal/retry"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 30 * time.Second

// Options configure an Engine. Manager is required; every channel is
// optional and the engine runs whichever ones are wired.
type Options struct {
	Manager   *store.Manager
	Server    *ServerClient
	Transport realtime.Transport
	Persist   *persist.Engine
	Recorder  metrics.Recorder
	Interval  time.Duration
	Backoff   retry.Policy
	QueueCap  int
}

// Engine drives the three reconciliation channels: the periodic server
// poll, the realtime push feed, and the storage watch for instances
// sharing a persistence backend.
type Engine struct {
	manager   *store.Manager
	server    *ServerClient
	transport realtime.Transport
	persist   *persist.Engine
	recorder  metrics.Recorder
	interval  time.Duration
	policy    retry.Policy
	origin    string
	pending   *queue

	scheduler   gocron.Scheduler
	unsubscribe func()
	cancelWatch context.CancelFunc
	wg          sync.WaitGroup

	inProgress atomic.Bool
	cycle      atomic.Uint64
	pulledTo   time.Time

	backoffMu    sync.Mutex
	streak       int
	nextEligible time.Time

	mergeMu    sync.Mutex
	lastMerged time.Time
}

// New builds an engine; Start wires the channels up.
func New(opts Options) (*Engine, error) {
	if opts.Manager == nil {
		return nil, ferrors.ConfigError("sync engine requires a manager").Build()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if err := opts.Backoff.Validate(); err != nil {
		opts.Backoff = retry.DefaultPolicy()
	}

	return &Engine{
		manager:   opts.Manager,
		server:    opts.Server,
		transport: opts.Transport,
		persist:   opts.Persist,
		recorder:  opts.Recorder,
		interval:  opts.Interval,
		policy:    opts.Backoff,
		origin:    opts.Manager.InstanceID(),
		pending:   newQueue(opts.QueueCap),
		pulledTo:  time.Now(),
	}, nil
}

// Start launches the poll schedule, subscribes the realtime feed, and
// begins watching shared storage. Stop undoes all three.
func (e *Engine) Start(ctx context.Context) error {
	if e.server != nil {
		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create sync scheduler: %w", err)
		}
		_, err = s.NewJob(
			gocron.DurationJob(e.interval),
			gocron.NewTask(e.runScheduled),
			gocron.WithName("state-sync"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule sync job: %w", err)
		}
		e.scheduler = s
		s.Start()
		slog.Info("sync polling started", "interval", e.interval)
	}

	if e.transport != nil {
		unsubscribe, err := e.transport.Subscribe(e.handleRealtime)
		if err != nil {
			return ferrors.RealtimeError("subscribing to realtime feed failed").
				WithCause(err).
				Build()
		}
		e.unsubscribe = unsubscribe
		slog.Info("realtime feed subscribed")
	}

	if e.persist != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		ch, err := e.persist.Watch(watchCtx)
		if err != nil {
			cancel()
			slog.Warn("storage watch unavailable, cross-instance merges disabled", "error", err)
		} else {
			e.cancelWatch = cancel
			e.wg.Add(1)
			go e.watchStorage(watchCtx, ch)
			slog.Info("storage watch started", "key", e.persist.Key())
		}
	}

	return nil
}

// Stop shuts every channel down and waits for in-flight work.
func (e *Engine) Stop(ctx context.Context) error {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.cancelWatch != nil {
		e.cancelWatch()
	}
	var err error
	if e.scheduler != nil {
		err = e.scheduler.Shutdown()
	}
	e.wg.Wait()
	slog.Info("sync engine stopped")
	return err
}

// InProgress reports whether a cycle is currently running.
func (e *Engine) InProgress() bool { return e.inProgress.Load() }

// PendingUpdates reports the number of queued, unflushed updates.
func (e *Engine) PendingUpdates() int { return e.pending.len() }

func (e *Engine) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), e.interval)
	defer cancel()
	_ = e.SyncNow(ctx)
}

// SyncNow runs one reconciliation cycle. Overlapping calls are rejected:
// only one cycle runs at a time, and a cycle arriving before the backoff
// deadline after a failure is skipped.
func (e *Engine) SyncNow(ctx context.Context) error {
	if e.server == nil {
		return nil
	}

	e.backoffMu.Lock()
	eligible := e.nextEligible
	e.backoffMu.Unlock()
	if time.Now().Before(eligible) {
		slog.Debug("sync cycle skipped, backing off", "until", eligible)
		return nil
	}

	if !e.inProgress.CompareAndSwap(false, true) {
		slog.Debug("sync cycle skipped, previous cycle still running")
		return nil
	}
	defer e.inProgress.Store(false)

	cycle := e.cycle.Add(1)
	ctx = observability.WithSyncCycle(ctx, cycle)
	started := time.Now()
	e.manager.Bus().Publish(ctx, events.SyncStarted{Cycle: cycle}) //nolint:errcheck

	applied, flushed, err := e.reconcile(ctx)
	elapsed := time.Since(started)

	if err != nil {
		e.backoffMu.Lock()
		e.streak++
		delay := e.policy.Delay(e.streak)
		e.nextEligible = time.Now().Add(delay)
		streak := e.streak
		e.backoffMu.Unlock()

		e.recorder.IncSyncCycle(false)
		e.manager.Bus().Publish(ctx, events.SyncFailed{Cycle: cycle, Err: err}) //nolint:errcheck
		observability.WarnContext(ctx, "sync cycle failed",
			slog.Int("streak", streak),
			slog.Duration("retry_in", delay),
			slog.Any("error", err))
		return err
	}

	e.backoffMu.Lock()
	e.streak = 0
	e.nextEligible = time.Time{}
	e.backoffMu.Unlock()

	e.recorder.IncSyncCycle(true)
	e.recorder.ObserveSyncCycleDuration(elapsed)
	e.recorder.SetPendingUpdates(e.pending.len())
	e.manager.Bus().Publish(ctx, events.SyncSucceeded{ //nolint:errcheck
		Cycle:    cycle,
		Applied:  applied,
		Flushed:  flushed,
		Duration: elapsed,
	})
	observability.DebugContext(ctx, "sync cycle completed",
		slog.Int("applied", applied),
		slog.Int("flushed", flushed),
		slog.Duration("duration", elapsed))
	return nil
}

// reconcile flushes pending local updates, then pulls and applies remote
// ones. A failed flush requeues the batch for the next cycle.
func (e *Engine) reconcile(ctx context.Context) (applied, flushed int, err error) {
	batch := e.pending.drain()
	if err := e.server.Push(ctx, e.origin, batch); err != nil {
		e.pending.requeue(batch)
		return 0, 0, err
	}
	flushed = len(batch)

	updates, err := e.server.Pull(ctx, e.pulledTo)
	if err != nil {
		return 0, flushed, err
	}

	for _, u := range updates {
		if u.Timestamp.After(e.pulledTo) {
			e.pulledTo = u.Timestamp
		}
		if u.Origin == e.origin {
			continue
		}
		if err := e.manager.ApplyRemote(ctx, u.Type, u.Payload, u.User, u.Origin); err != nil {
			slog.Warn("skipping unapplicable server update", "update", u.ID, "type", u.Type, "error", err)
			continue
		}
		applied++
	}
	return applied, flushed, nil
}

// broadcast pushes a locally-committed update onto the realtime channel.
func (e *Engine) broadcast(ctx context.Context, u realtime.Update) {
	if e.transport == nil {
		return
	}
	if err := e.transport.Publish(ctx, u); err != nil {
		slog.Warn("realtime broadcast failed, update stays queued for polling", "update", u.ID, "error", err)
	}
}

// handleRealtime applies one pushed update. Updates carrying our own
// origin, or our own user when the origin is unknown, are echoes of
// mutations this instance already applied and are suppressed.
func (e *Engine) handleRealtime(u realtime.Update) {
	if u.Origin == e.origin || (u.Origin == "" && u.User != "" && u.User == e.manager.CurrentUser()) {
		e.recorder.IncRealtimeUpdate(false)
		slog.Debug("suppressed echo update", "update", u.ID, "origin", u.Origin)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.manager.ApplyRemote(ctx, u.Type, u.Payload, u.User, u.Origin); err != nil {
		e.recorder.IncRealtimeUpdate(false)
		slog.Warn("dropping unapplicable realtime update", "update", u.ID, "type", u.Type, "error", err)
		return
	}
	e.recorder.IncRealtimeUpdate(true)
}

// watchStorage merges snapshots persisted by other instances sharing the
// backend. Last writer wins, decided by the envelope timestamp: only
// snapshots strictly newer than both our last persist and our last merge
// are applied.
func (e *Engine) watchStorage(ctx context.Context, ch <-chan []byte) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			e.mergeRaw(ctx, raw)
		}
	}
}

func (e *Engine) mergeRaw(ctx context.Context, raw []byte) {
	data, env, err := persist.DecodeEnvelope(raw)
	if err != nil {
		slog.Warn("ignoring corrupt stored snapshot", "error", err)
		return
	}
	ts := env.Time()

	if !ts.After(e.persist.LastPersisted()) {
		// Our own write, or older than it.
		return
	}

	e.mergeMu.Lock()
	if !ts.After(e.lastMerged) {
		e.mergeMu.Unlock()
		return
	}
	e.lastMerged = ts
	e.mergeMu.Unlock()

	e.manager.MergeSnapshot(ctx, data, ts)
}
