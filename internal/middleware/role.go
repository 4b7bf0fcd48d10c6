package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/pkg/response"
)

// RequireAudience returns a middleware that rejects requests whose
// claimed audience does not match the audience resolver's result for
// this request (e.g. the audience of the room being addressed). Handlers
// needing cross-audience access (system/vacuum) should not mount this.
func RequireAudience(resolve func(c *gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimed, ok := c.Get(ContextAudience)
		if !ok {
			response.Unauthorized(c, "missing agent context")
			c.Abort()
			return
		}
		target, found := resolve(c)
		if !found {
			c.Next()
			return
		}
		if claimed.(string) != target {
			response.Forbidden(c, "audience mismatch")
			c.Abort()
			return
		}
		c.Next()
	}
}
