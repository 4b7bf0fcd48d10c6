// Package httpapi wires the session/recordings/vacuum services onto the
// gin routes of spec §6: one handler file per route group, a shared
// router assembly, and small request/response DTOs that translate
// between JSON bodies and the session package's input structs.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/middleware"
	"github.com/aura-webinar/backend/pkg/response"
)

// pathUUID parses a gin path parameter as a uuid, writing a Problem
// Details response and reporting failure if it isn't one.
func pathUUID(c *gin.Context, name string, notFoundKind apperr.Kind) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperr.New(notFoundKind, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses a required query parameter as a uuid.
func queryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		response.Error(c, apperr.New(apperr.KindMessageParsingFailed, name+" is required"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryTime(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// callerAgentID reads the authenticated agent id set by middleware.JWT.
func callerAgentID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextAgentID).(uuid.UUID)
}

func callerAgentLabel(c *gin.Context) string {
	v, _ := c.Get(middleware.ContextAgentLabel)
	label, _ := v.(string)
	return label
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, apperr.New(apperr.KindMessageParsingFailed, err.Error()))
		return false
	}
	return true
}

// healthz answers the liveness route; it never touches the database so it
// stays cheap under a sweep or outbox backlog.
func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
