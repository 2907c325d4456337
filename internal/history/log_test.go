package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

func mutation(i int) state.Mutation {
	return state.Mutation{
		Type:    "counter/INCREMENT",
		Module:  "counter",
		Action:  "INCREMENT",
		Payload: i,
	}
}

func snapshot(i int) state.Tree {
	return state.Tree{"counter": map[string]any{"value": i}}
}

func TestAppend_CursorFollowsTip(t *testing.T) {
	l := NewLog(10)

	for i := 0; i < 3; i++ {
		l.Append(mutation(i), snapshot(i))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 2, l.Cursor())
}

func TestAppend_BoundEvictsOldestFirst(t *testing.T) {
	const max = 5
	l := NewLog(max)

	for i := 0; i < max*3; i++ {
		l.Append(mutation(i), snapshot(i))
	}

	require.Equal(t, max, l.Len())
	entries := l.Entries()
	for offset, e := range entries {
		assert.Equal(t, max*3-max+offset, e.Mutation.Payload,
			"retained entries must be the most recent, in commit order")
	}
}

func TestSeek_OutOfRange(t *testing.T) {
	l := NewLog(10)
	l.Append(mutation(0), snapshot(0))

	assert.False(t, l.Seek(-1))
	assert.False(t, l.Seek(1))
	assert.True(t, l.Seek(0))
}

func TestAppend_AfterSeekTruncatesRedoBranch(t *testing.T) {
	l := NewLog(10)
	for i := 0; i < 5; i++ {
		l.Append(mutation(i), snapshot(i))
	}

	require.True(t, l.Seek(2))
	l.Append(mutation(99), snapshot(99))

	// Entries 3 and 4 were discarded before the append.
	require.Equal(t, 4, l.Len())
	tip, ok := l.At(3)
	require.True(t, ok)
	assert.Equal(t, 99, tip.Mutation.Payload)
	assert.Equal(t, 3, l.Cursor())

	for i, want := range []int{0, 1, 2, 99} {
		e, ok := l.At(i)
		require.True(t, ok, fmt.Sprintf("entry %d", i))
		assert.Equal(t, want, e.Mutation.Payload)
	}
}

func TestClear(t *testing.T) {
	l := NewLog(10)
	l.Append(mutation(0), snapshot(0))
	l.Clear()

	assert.Zero(t, l.Len())
	assert.Equal(t, -1, l.Cursor())
	_, ok := l.At(0)
	assert.False(t, ok)
}
