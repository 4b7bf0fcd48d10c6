package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/auth"
)

func newJWTTestContext(headers map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c, w
}

func TestJWT_RejectsMissingAuthorizationHeader(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	c, w := newJWTTestContext(nil)

	JWT(svc)(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}

func TestJWT_RejectsNonBearerScheme(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	c, w := newJWTTestContext(map[string]string{"Authorization": "Basic abc123"})

	JWT(svc)(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}

func TestJWT_RejectsMissingAgentLabel(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	token, err := svc.Generate(uuid.New(), "classroom-1")
	require.NoError(t, err)

	c, w := newJWTTestContext(map[string]string{"Authorization": "Bearer " + token})

	JWT(svc)(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}

func TestJWT_AcceptsValidTokenAndLabel(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	agentID := uuid.New()
	token, err := svc.Generate(agentID, "classroom-1")
	require.NoError(t, err)

	c, w := newJWTTestContext(map[string]string{
		"Authorization": "Bearer " + token,
		"X-Agent-Label": "student-1",
	})

	JWT(svc)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)

	got, ok := c.Get(ContextAgentID)
	require.True(t, ok)
	assert.Equal(t, agentID, got)

	audience, ok := c.Get(ContextAudience)
	require.True(t, ok)
	assert.Equal(t, "classroom-1", audience)

	label, ok := c.Get(ContextAgentLabel)
	require.True(t, ok)
	assert.Equal(t, "student-1", label)
}
