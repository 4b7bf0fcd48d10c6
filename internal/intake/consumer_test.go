package intake

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/models"
)

func TestVideoGroupIntent_RoundTrip(t *testing.T) {
	roomID := uuid.New()
	agentID := uuid.New()
	intent := VideoGroupIntent{
		Type:   models.StageVideoGroupUpdate,
		RoomID: roomID,
		Groups: []models.GroupAgent{{RoomID: roomID, AgentID: agentID, Number: 2}},
	}

	body, err := json.Marshal(intent)
	require.NoError(t, err)

	var decoded VideoGroupIntent
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, intent.Type, decoded.Type)
	assert.Equal(t, intent.RoomID, decoded.RoomID)
	require.Len(t, decoded.Groups, 1)
	assert.Equal(t, agentID, decoded.Groups[0].AgentID)
	assert.Equal(t, 2, decoded.Groups[0].Number)
}

func TestVideoGroupIntent_InvalidPayload(t *testing.T) {
	var decoded VideoGroupIntent
	assert.Error(t, json.Unmarshal([]byte("not json"), &decoded))
}

func TestNewConsumer_DefaultsNilLogger(t *testing.T) {
	c := NewConsumer(nil, nil, nil)
	assert.NotNil(t, c.logger)
	assert.NotPanics(t, func() { c.logger.Info("ok") })
}
