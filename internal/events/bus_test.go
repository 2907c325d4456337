package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[StoreReset](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), StoreReset{}))

	select {
	case <-ch:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesAllStoreEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[StoreEvent](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), MutationApplied{
		Mutation: state.Mutation{Type: "counter/INCREMENT", Module: "counter"},
	}))
	require.NoError(t, b.Publish(context.Background(), SyncStarted{Cycle: 1}))

	first := <-ch
	require.Equal(t, "state:mutation", first.EventName())
	second := <-ch
	require.Equal(t, "state:syncStart", second.EventName())
}

func TestBus_DeliveryPreservesCommitOrder(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[MutationApplied](b, 8)
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(context.Background(), MutationApplied{
			Mutation: state.Mutation{Payload: i},
		}))
	}
	for i := 0; i < 5; i++ {
		got := <-ch
		require.Equal(t, i, got.Mutation.Payload)
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[StoreReset](b, 0) // unbuffered, no receiver
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, StoreReset{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryInternal))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[SyncFailed](b, 1)
	require.Equal(t, 1, SubscriberCount[SyncFailed](b))
	unsubscribe()
	require.Equal(t, 0, SubscriberCount[SyncFailed](b))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[StoreReset](b, 1)
	b.Close()

	_, open := <-ch
	require.False(t, open)
	require.Error(t, b.Publish(context.Background(), StoreReset{}))
}
