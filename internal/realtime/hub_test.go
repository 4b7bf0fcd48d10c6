package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishRoomEvent(roomID uuid.UUID, event string, payload []byte) error {
	f.events = append(f.events, event)
	return nil
}

func newTestClient(roomID, agentID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		RoomID:  roomID,
		AgentID: agentID,
		send:    make(chan WSMessage, 4),
	}
}

func TestHub_Register_FiresAudienceAndReadyHandlers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	var audienceCounts []int
	hub.SetAudienceChangeHandler(func(roomID uuid.UUID, count int) {
		audienceCounts = append(audienceCounts, count)
	})
	var readyAgent uuid.UUID
	hub.SetAgentReadyHandler(func(roomID, agentID uuid.UUID) {
		readyAgent = agentID
	})

	roomID := uuid.New()
	agentID := uuid.New()
	hub.Register(newTestClient(roomID, agentID))

	assert.Equal(t, []int{1}, audienceCounts)
	assert.Equal(t, agentID, readyAgent)
	assert.Equal(t, 1, hub.AudienceCount(roomID))
}

func TestHub_Unregister_FiresAudienceHandlerOnlyWhileOccupied(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	var audienceCounts []int
	hub.SetAudienceChangeHandler(func(roomID uuid.UUID, count int) {
		audienceCounts = append(audienceCounts, count)
	})

	roomID := uuid.New()
	a := newTestClient(roomID, uuid.New())
	b := newTestClient(roomID, uuid.New())
	hub.Register(a)
	hub.Register(b)
	audienceCounts = nil

	hub.Unregister(a)
	assert.Equal(t, []int{1}, audienceCounts)

	hub.Unregister(b)
	assert.Equal(t, 0, hub.AudienceCount(roomID))
}

func TestHub_BroadcastToRoomAndPublish_PublishesToRedisAndLocalClients(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(zap.NewNop(), pub, nil)

	roomID := uuid.New()
	c := newTestClient(roomID, uuid.New())
	hub.Register(c)

	hub.BroadcastToRoomAndPublish(roomID, "room.enter", map[string]string{"k": "v"})

	require.Len(t, pub.events, 1)
	assert.Equal(t, "room.enter", pub.events[0])

	select {
	case msg := <-c.send:
		assert.Equal(t, "room.enter", msg.Event)
	default:
		t.Fatal("expected local client to receive broadcast")
	}
}

func TestHub_SendToClient_UnknownClientIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	assert.NotPanics(t, func() {
		hub.SendToClient(uuid.New(), "missing", "event", nil)
	})
}
