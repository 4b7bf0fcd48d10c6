package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/realtime"
)

func TestBrokerSink_Deliver_ParsesRoutingKeyAsRoomID(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	sink := BrokerSink{Hub: hub}
	roomID := uuid.New()

	err := sink.Deliver(context.Background(), models.OutboxEntry{
		Topic:      models.TopicRoom,
		Stage:      models.StageRoomEnter,
		RoutingKey: roomID.String(),
		Payload:    []byte(`{"ok":true}`),
	})

	require.NoError(t, err)
}

func TestBrokerSink_Deliver_RejectsInvalidRoutingKey(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	sink := BrokerSink{Hub: hub}

	err := sink.Deliver(context.Background(), models.OutboxEntry{
		Topic:      models.TopicRoom,
		RoutingKey: "not-a-uuid",
	})

	assert.Error(t, err)
}
