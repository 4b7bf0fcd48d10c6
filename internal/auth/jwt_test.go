package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	agentID := uuid.New()

	token, err := svc.Generate(agentID, "classroom-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, agentID, claims.AgentID)
	assert.Equal(t, "classroom-1", claims.Audience)
}

func TestJWTService_Validate_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", 1)
	verifier := NewJWTService("secret-b", 1)

	token, err := issuer.Generate(uuid.New(), "classroom-1")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Validate_Malformed(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	_, err := svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Validate_Expired(t *testing.T) {
	svc := NewJWTService("test-secret", 0)
	token, err := svc.Generate(uuid.New(), "classroom-1")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
