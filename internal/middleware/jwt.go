package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/internal/auth"
	"github.com/aura-webinar/backend/pkg/response"
)

const (
	// ContextAgentID is the key for the authenticated agent id in gin context.
	ContextAgentID = "agent_id"
	// ContextAudience is the key for the agent's audience in gin context.
	ContextAudience = "audience"
	// ContextAgentLabel is the key for the X-Agent-Label header value.
	ContextAgentLabel = "agent_label"
)

// JWT returns a middleware that validates the bearer token and the
// X-Agent-Label header, and sets the agent's claims in context (spec §6).
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		label := c.GetHeader("X-Agent-Label")
		if label == "" {
			response.Unauthorized(c, "missing X-Agent-Label header")
			c.Abort()
			return
		}
		c.Set(ContextAgentID, claims.AgentID)
		c.Set(ContextAudience, claims.Audience)
		c.Set(ContextAgentLabel, label)
		c.Next()
	}
}
