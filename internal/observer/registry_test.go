package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

func newTestRegistry(tree state.Tree) *Registry {
	return NewRegistry(func(path string) (state.Value, bool) {
		return state.GetPath(tree, path)
	})
}

func TestSubscribe_ImmediateRunsBeforeReturn(t *testing.T) {
	tree := state.Tree{"counter": map[string]any{"value": 3}}
	r := newTestRegistry(tree)

	var gotNew, gotOld state.Value
	called := false
	r.Subscribe("counter.value", func(newV, oldV state.Value) {
		called = true
		gotNew, gotOld = newV, oldV
	}, Options{Immediate: true})

	require.True(t, called, "immediate callback must run synchronously")
	assert.Equal(t, 3, gotNew)
	assert.Nil(t, gotOld)
}

func TestNotify_ExactPath(t *testing.T) {
	tree := state.Tree{"projects": map[string]any{"items": []any{}}}
	r := newTestRegistry(tree)

	var calls int
	r.Subscribe("projects", func(newV, oldV state.Value) {
		calls++
		assert.Equal(t, "new", newV)
		assert.Equal(t, "old", oldV)
	}, Options{})

	r.Notify("projects", "new", "old")
	assert.Equal(t, 1, calls)

	// Unrelated module does not fire.
	r.Notify("meetings", "x", "y")
	assert.Equal(t, 1, calls)
}

func TestNotify_DeepGetsFreshRead(t *testing.T) {
	tree := state.Tree{"user": map[string]any{"profile": map[string]any{"name": "Ada"}}}
	r := newTestRegistry(tree)

	var gotNew, gotOld state.Value
	calls := 0
	r.Subscribe("user.profile.name", func(newV, oldV state.Value) {
		calls++
		gotNew, gotOld = newV, oldV
	}, Options{Deep: true})

	// Mutate underneath, then notify at module granularity. The deep
	// subscriber must observe its own path's current value, not the
	// notified module value.
	tree["user"].(map[string]any)["profile"].(map[string]any)["name"] = "Grace"
	r.Notify("user", tree["user"], nil)

	require.Equal(t, 1, calls)
	assert.Equal(t, "Grace", gotNew)
	assert.Nil(t, gotOld) // nothing delivered before

	tree["user"].(map[string]any)["profile"].(map[string]any)["name"] = "Joan"
	r.Notify("user", tree["user"], nil)
	assert.Equal(t, "Joan", gotNew)
	assert.Equal(t, "Grace", gotOld)
}

func TestNotify_DescendantPathFiresWithoutDeep(t *testing.T) {
	tree := state.Tree{"counter": map[string]any{"value": 1}}
	r := newTestRegistry(tree)

	var gotNew state.Value
	r.Subscribe("counter.value", func(newV, oldV state.Value) { gotNew = newV }, Options{})

	// Module-grained notification reaches subscriptions below it.
	r.Notify("counter", tree["counter"], nil)
	assert.Equal(t, 1, gotNew)
}

func TestNotify_FirstRereadReportsPreviousValue(t *testing.T) {
	tree := state.Tree{"counter": map[string]any{"value": 0}}
	r := newTestRegistry(tree)

	var gotNew, gotOld state.Value
	r.Subscribe("counter.value", func(newV, oldV state.Value) {
		gotNew, gotOld = newV, oldV
	}, Options{})

	tree["counter"] = map[string]any{"value": 1}
	r.Notify("counter", tree["counter"], map[string]any{"value": 0})

	assert.Equal(t, 1, gotNew)
	assert.Equal(t, 0, gotOld, "first notification carries the value seen at subscribe time")
}

func TestNotify_DeepAncestorPath(t *testing.T) {
	tree := state.Tree{"ui": map[string]any{"theme": "dark"}}
	r := newTestRegistry(tree)

	calls := 0
	r.Subscribe("ui", func(newV, oldV state.Value) { calls++ }, Options{Deep: true})
	shallowCalls := 0
	r.Subscribe("ui", func(newV, oldV state.Value) { shallowCalls++ }, Options{})

	// A notification scoped below the subscription fires only deep
	// subscribers.
	r.Notify("ui.theme", "dark", "light")
	assert.Equal(t, 1, calls)
	assert.Zero(t, shallowCalls)
}

func TestNotify_OnceRemovedAfterFullPass(t *testing.T) {
	tree := state.Tree{"chat": map[string]any{}}
	r := newTestRegistry(tree)

	calls := 0
	r.Subscribe("chat", func(newV, oldV state.Value) { calls++ }, Options{Once: true})
	secondCalls := 0
	r.Subscribe("chat", func(newV, oldV state.Value) { secondCalls++ }, Options{})

	r.Notify("chat", nil, nil)
	r.Notify("chat", nil, nil)

	assert.Equal(t, 1, calls, "once subscription fires a single time")
	assert.Equal(t, 2, secondCalls, "sibling subscription unaffected")
	assert.Equal(t, 1, r.Count())
}

func TestNotify_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	tree := state.Tree{"notifications": map[string]any{}}
	r := newTestRegistry(tree)

	r.Subscribe("notifications", func(newV, oldV state.Value) {
		panic("subscriber bug")
	}, Options{})
	survived := false
	r.Subscribe("notifications", func(newV, oldV state.Value) {
		survived = true
	}, Options{})

	r.Notify("notifications", nil, nil)
	assert.True(t, survived)
}

func TestUnsubscribe(t *testing.T) {
	tree := state.Tree{"meetings": map[string]any{}}
	r := newTestRegistry(tree)

	calls := 0
	unsubscribe := r.Subscribe("meetings", func(newV, oldV state.Value) { calls++ }, Options{})
	unsubscribe()
	unsubscribe() // second call is a no-op

	r.Notify("meetings", nil, nil)
	assert.Zero(t, calls)
	assert.Zero(t, r.Count())
}
