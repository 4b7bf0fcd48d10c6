package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRoleTestContext(audience string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if audience != "" {
		c.Set(ContextAudience, audience)
	}
	return c, w
}

func TestRequireAudience_RejectsMissingContext(t *testing.T) {
	c, w := newRoleTestContext("")
	resolve := func(c *gin.Context) (string, bool) { return "classroom-1", true }

	RequireAudience(resolve)(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireAudience_PassesWhenResolverFindsNothing(t *testing.T) {
	c, w := newRoleTestContext("classroom-1")
	resolve := func(c *gin.Context) (string, bool) { return "", false }

	RequireAudience(resolve)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAudience_RejectsMismatch(t *testing.T) {
	c, w := newRoleTestContext("classroom-1")
	resolve := func(c *gin.Context) (string, bool) { return "classroom-2", true }

	RequireAudience(resolve)(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireAudience_PassesOnMatch(t *testing.T) {
	c, w := newRoleTestContext("classroom-1")
	resolve := func(c *gin.Context) (string, bool) { return "classroom-1", true }

	RequireAudience(resolve)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}
