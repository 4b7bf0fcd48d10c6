package realtime

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisPubSub(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPubSub(client, nil)
}

func TestRedisPubSub_PublishRoomEvent_DeliversToSubscriber(t *testing.T) {
	ps := newTestRedisPubSub(t)
	roomID := uuid.New()

	received := make(chan string, 1)
	cancel, err := ps.SubscribeRoom(roomID, func(event string, payload []byte) {
		received <- event
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishRoomEvent(roomID, "room.enter", []byte(`{"ok":true}`)))

	select {
	case event := <-received:
		require.Equal(t, "room.enter", event)
	case <-time.After(2 * time.Second):
		t.Fatal("expected subscriber to receive published event")
	}
}

func TestRedisPubSub_PublishRoomEvent_IsolatedByRoom(t *testing.T) {
	ps := newTestRedisPubSub(t)
	roomA := uuid.New()
	roomB := uuid.New()

	received := make(chan string, 1)
	cancel, err := ps.SubscribeRoom(roomA, func(event string, payload []byte) {
		received <- event
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishRoomEvent(roomB, "room.enter", []byte(`{}`)))

	select {
	case event := <-received:
		t.Fatalf("unexpected event on unrelated room: %s", event)
	case <-time.After(200 * time.Millisecond):
	}
}
