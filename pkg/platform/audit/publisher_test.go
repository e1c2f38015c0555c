package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "montoit/pkg/domain"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.NewUserID()
	err := pub.Emit(context.Background(), Event{
		UserID:  userID,
		Action:  ActionKYCStarted,
		Channel: "kyc",
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionKYCStarted, events[0].Action)
	assert.Equal(t, "kyc", events[0].Channel)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	userID := id.NewUserID()
	err := pub.Emit(context.Background(), Event{
		UserID: userID,
		Action: ActionFaceSubmitted,
	})
	require.NoError(t, err)

	// Wait for the worker to drain the buffer.
	require.Eventually(t, func() bool {
		events, err := store.ListByUser(context.Background(), userID)
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	userID := id.NewUserID()
	for i := 0; i < 10; i++ {
		err := pub.Emit(context.Background(), Event{
			UserID: userID,
			Action: ActionDocumentSubmitted,
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	userID := id.NewUserID()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), Event{
				UserID: userID,
				Action: ActionKYCStarted,
			})
		}()
	}
	wg.Wait()

	// Overflow is dropped silently; Emit must never error or block.
	err := pub.Emit(context.Background(), Event{UserID: userID, Action: ActionKYCStarted})
	require.NoError(t, err)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.NewUserID()

	before := time.Now()
	err := pub.Emit(context.Background(), Event{UserID: userID, Action: ActionStatusRead})
	require.NoError(t, err)
	after := time.Now()

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.NewUserID()
	stamp := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Emit(context.Background(), Event{
		UserID:    userID,
		Action:    ActionKYCCallback,
		Timestamp: stamp,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(stamp))
}

func TestPublisher_CloseTwice(t *testing.T) {
	pub := NewPublisher(NewInMemoryStore(), WithAsyncBuffer(4))
	pub.Close()
	pub.Close()
}
