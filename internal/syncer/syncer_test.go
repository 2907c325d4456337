package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
	"git.ecosistema.dev/plataforma/statecore/internal/retry"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
)

// settingsModule is a small persistable module for sync tests.
type settingsModule struct{}

func (settingsModule) Name() string { return "settings" }

func (settingsModule) InitialState() state.Value {
	return map[string]state.Value{"volume": 0}
}

func (settingsModule) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s := sub.(map[string]state.Value)
	switch action {
	case "SET_VOLUME":
		s["volume"] = payload
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
	return s, nil
}

func (settingsModule) ShouldPersist() bool                      { return true }
func (settingsModule) PersistedState(sub state.Value) state.Value { return sub }
func (settingsModule) OnHydrate(state.Value)                    {}

func newSyncedManager(t *testing.T) *store.Manager {
	t.Helper()
	m := store.New(store.Options{})
	m.RegisterModule(context.Background(), settingsModule{})
	return m
}

func TestRealtimeFanOutAndEchoSuppression(t *testing.T) {
	transport := realtime.NewLoopback()
	defer transport.Close()

	alice := newSyncedManager(t)
	bob := newSyncedManager(t)

	engineA, err := New(Options{Manager: alice, Transport: transport})
	require.NoError(t, err)
	engineB, err := New(Options{Manager: bob, Transport: transport})
	require.NoError(t, err)

	require.NoError(t, engineA.Start(context.Background()))
	defer engineA.Stop(context.Background())
	require.NoError(t, engineB.Start(context.Background()))
	defer engineB.Stop(context.Background())

	alice.Use(engineA.Middleware())
	require.NoError(t, alice.Commit(context.Background(), "settings/SET_VOLUME", 7))

	// Loopback delivery is synchronous: bob applied, alice suppressed
	// her own echo and kept the committed value intact.
	assert.Equal(t, 7, bob.Get("settings.volume"))
	assert.Equal(t, 7, alice.Get("settings.volume"))
}

func TestRealtimeSuppressionByUser(t *testing.T) {
	transport := realtime.NewLoopback()
	defer transport.Close()

	m := newSyncedManager(t)
	m.SetCurrentUser("user-1")

	engine, err := New(Options{Manager: m, Transport: transport})
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	// An update with no origin but our own user is an echo.
	require.NoError(t, transport.Publish(context.Background(), realtime.Update{
		ID:        "u1",
		Type:      "settings/SET_VOLUME",
		Payload:   9,
		User:      "user-1",
		Timestamp: time.Now(),
	}))
	assert.Equal(t, 0, m.Get("settings.volume"))

	// A different user's update is applied.
	require.NoError(t, transport.Publish(context.Background(), realtime.Update{
		ID:        "u2",
		Type:      "settings/SET_VOLUME",
		Payload:   3,
		User:      "user-2",
		Origin:    "elsewhere",
		Timestamp: time.Now(),
	}))
	assert.Equal(t, 3, m.Get("settings.volume"))
}

// stateServer fakes the platform reconciliation endpoints.
type stateServer struct {
	mu       sync.Mutex
	received []realtime.Update
	serve    []realtime.Update
	failures int
}

func (s *stateServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(updatesPath, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failures > 0 {
			s.failures--
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case http.MethodPost:
			var req pushRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.received = append(s.received, req.Updates...)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}")) //nolint:errcheck
		case http.MethodGet:
			json.NewEncoder(w).Encode(pullResponse{Updates: s.serve}) //nolint:errcheck
		}
	})
	return mux
}

func noRetry() retry.Policy {
	return retry.Policy{Mode: retry.BackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 0}
}

func TestSyncCycleFlushesAndApplies(t *testing.T) {
	remote := &stateServer{serve: []realtime.Update{
		{ID: "r1", Type: "settings/SET_VOLUME", Payload: 5, User: "user-2", Origin: "elsewhere", Timestamp: time.Now().Add(time.Minute)},
	}}
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	m := newSyncedManager(t)
	engine, err := New(Options{
		Manager: m,
		Server:  NewServerClient(api.NewClient(srv.URL, 5*time.Second, noRetry())),
	})
	require.NoError(t, err)

	m.Use(engine.Middleware())
	require.NoError(t, m.Commit(context.Background(), "settings/SET_VOLUME", 1))
	require.Equal(t, 1, engine.PendingUpdates())

	require.NoError(t, engine.SyncNow(context.Background()))

	assert.Zero(t, engine.PendingUpdates())
	require.Len(t, remote.received, 1)
	assert.Equal(t, "settings/SET_VOLUME", remote.received[0].Type)
	assert.Equal(t, m.InstanceID(), remote.received[0].Origin)

	// The pulled remote update was applied over the local one.
	assert.EqualValues(t, 5, m.Get("settings.volume"))
}

func TestSyncCycleSkipsOwnOriginOnPull(t *testing.T) {
	m := newSyncedManager(t)
	remote := &stateServer{serve: []realtime.Update{
		{ID: "mine", Type: "settings/SET_VOLUME", Payload: 99, Origin: "", Timestamp: time.Now().Add(time.Minute)},
	}}
	remote.serve[0].Origin = m.InstanceID()
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	engine, err := New(Options{
		Manager: m,
		Server:  NewServerClient(api.NewClient(srv.URL, 5*time.Second, noRetry())),
	})
	require.NoError(t, err)

	require.NoError(t, engine.SyncNow(context.Background()))
	assert.Equal(t, 0, m.Get("settings.volume"))
}

func TestSyncFailureBacksOff(t *testing.T) {
	remote := &stateServer{failures: 10}
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	m := newSyncedManager(t)
	engine, err := New(Options{
		Manager: m,
		Server:  NewServerClient(api.NewClient(srv.URL, 5*time.Second, noRetry())),
		Backoff: retry.Policy{Mode: retry.BackoffExponential, Initial: time.Hour, Max: time.Hour, MaxRetries: -1},
	})
	require.NoError(t, err)

	m.Use(engine.Middleware())
	require.NoError(t, m.Commit(context.Background(), "settings/SET_VOLUME", 2))

	require.Error(t, engine.SyncNow(context.Background()))
	// The failed batch is requeued, not lost.
	assert.Equal(t, 1, engine.PendingUpdates())

	// Within the backoff window the next cycle is a silent skip.
	require.NoError(t, engine.SyncNow(context.Background()))
	assert.Equal(t, 1, engine.PendingUpdates())
	assert.Empty(t, remote.received)
}

func TestSyncCycleMutualExclusion(t *testing.T) {
	m := newSyncedManager(t)
	srv := httptest.NewServer((&stateServer{}).handler())
	defer srv.Close()

	engine, err := New(Options{
		Manager: m,
		Server:  NewServerClient(api.NewClient(srv.URL, 5*time.Second, noRetry())),
	})
	require.NoError(t, err)

	engine.inProgress.Store(true)
	require.NoError(t, engine.SyncNow(context.Background()))
	assert.True(t, engine.InProgress(), "skipped cycle must not clear the running flag")
	engine.inProgress.Store(false)
}

func TestCrossInstanceMergeLastWriterWins(t *testing.T) {
	backend := persist.NewMemoryBackend()
	defer backend.Close()

	local := newSyncedManager(t)
	require.NoError(t, local.Commit(context.Background(), "settings/SET_VOLUME", 7))

	localPersist := persist.NewEngine(backend, persist.Config{}, local.CollectPersistable)
	engine, err := New(Options{Manager: local, Persist: localPersist})
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	// Another instance persists a strictly newer snapshot.
	newer, err := persist.EncodeEnvelope(
		state.Tree{"settings": map[string]state.Value{"volume": 10}},
		"1.0.0", false, time.Now().Add(time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, backend.Set(context.Background(), persist.DefaultKey, newer))

	require.Eventually(t, func() bool {
		return local.Get("settings.volume") == float64(10)
	}, 2*time.Second, 10*time.Millisecond, "newer snapshot must win")

	// An older snapshot arriving later is ignored.
	older, err := persist.EncodeEnvelope(
		state.Tree{"settings": map[string]state.Value{"volume": 1}},
		"1.0.0", false, time.Now().Add(-time.Hour),
	)
	require.NoError(t, err)
	require.NoError(t, backend.Set(context.Background(), persist.DefaultKey, older))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, float64(10), local.Get("settings.volume"))
}

func TestCrossInstanceIgnoresOwnWrites(t *testing.T) {
	backend := persist.NewMemoryBackend()
	defer backend.Close()

	m := newSyncedManager(t)
	engine := persist.NewEngine(backend, persist.Config{}, m.CollectPersistable)
	m.Use(store.PersistenceMiddleware{Engine: engine})

	eng, err := New(Options{Manager: m, Persist: engine})
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop(context.Background())

	require.NoError(t, m.Commit(context.Background(), "settings/SET_VOLUME", 4))

	// Our own persisted write must not bounce back as a merge.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, m.Get("settings.volume"))
}

func TestQueueBounds(t *testing.T) {
	q := newQueue(3)
	for i := 0; i < 5; i++ {
		q.push(realtime.Update{ID: fmt.Sprint(i)})
	}
	items := q.drain()
	require.Len(t, items, 3)
	assert.Equal(t, "2", items[0].ID)
	assert.Equal(t, "4", items[2].ID)
	assert.Zero(t, q.len())
}

func TestQueueRequeueKeepsOrder(t *testing.T) {
	q := newQueue(10)
	q.push(realtime.Update{ID: "c"})
	batch := []realtime.Update{{ID: "a"}, {ID: "b"}}
	q.requeue(batch)

	items := q.drain()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestEngineRequiresManager(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
