package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

type recordingSink struct {
	delivered []models.OutboxEntry
	err       error
}

func (r *recordingSink) Deliver(ctx context.Context, entry models.OutboxEntry) error {
	r.delivered = append(r.delivered, entry)
	return r.err
}

func TestSinks_Deliver_RoutesBusTopicToBusSink(t *testing.T) {
	bus := &recordingSink{}
	broker := &recordingSink{}
	sinks := Sinks{Broker: broker, Bus: bus}

	entry := models.OutboxEntry{ID: uuid.New(), Topic: models.TopicBus}
	require.NoError(t, sinks.deliver(context.Background(), entry))

	assert.Len(t, bus.delivered, 1)
	assert.Empty(t, broker.delivered)
}

func TestSinks_Deliver_RoutesRoomAndAudienceTopicsToBroker(t *testing.T) {
	bus := &recordingSink{}
	broker := &recordingSink{}
	sinks := Sinks{Broker: broker, Bus: bus}

	require.NoError(t, sinks.deliver(context.Background(), models.OutboxEntry{Topic: models.TopicRoom}))
	require.NoError(t, sinks.deliver(context.Background(), models.OutboxEntry{Topic: models.TopicAudience}))

	assert.Len(t, broker.delivered, 2)
	assert.Empty(t, bus.delivered)
}

func TestSinks_Deliver_UnknownTopicErrors(t *testing.T) {
	sinks := Sinks{Broker: &recordingSink{}, Bus: &recordingSink{}}
	err := sinks.deliver(context.Background(), models.OutboxEntry{Topic: models.OutboxTopic("mystery")})
	assert.Equal(t, apperr.KindMessageBuildingFailed, apperr.KindOf(err))
}

func TestSinks_Deliver_NilSinkErrors(t *testing.T) {
	sinks := Sinks{Broker: nil, Bus: &recordingSink{}}
	err := sinks.deliver(context.Background(), models.OutboxEntry{Topic: models.TopicRoom})
	assert.Equal(t, apperr.KindPublishFailed, apperr.KindOf(err))
}
