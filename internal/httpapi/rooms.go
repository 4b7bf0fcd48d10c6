package httpapi

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

// roomTimeRequest mirrors models.TimeRange for JSON binding; Upper is
// optional (an unbounded room) while Lower is always required.
type roomTimeRequest struct {
	Lower time.Time  `json:"lower" binding:"required"`
	Upper *time.Time `json:"upper"`
}

type createRoomRequest struct {
	ClassroomID      uuid.UUID               `json:"classroom_id" binding:"required"`
	Audience         string                  `json:"audience" binding:"required"`
	Time             roomTimeRequest         `json:"time" binding:"required"`
	RtcSharingPolicy models.RtcSharingPolicy `json:"rtc_sharing_policy" binding:"required"`
	Reserve          *int                    `json:"reserve"`
	Tags             json.RawMessage         `json:"tags"`
	Infinite         bool                    `json:"infinite"`
}

// CreateRoom handles POST /rooms (room.create).
func CreateRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if !bindJSON(c, &req) {
			return
		}
		room, err := svc.CreateRoom(c.Request.Context(), session.CreateRoomInput{
			ClassroomID:      req.ClassroomID,
			Audience:         req.Audience,
			Time:             models.TimeRange{Lower: req.Time.Lower, Upper: req.Time.Upper},
			RtcSharingPolicy: req.RtcSharingPolicy,
			Reserve:          req.Reserve,
			Tags:             req.Tags,
			Infinite:         req.Infinite,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, room)
	}
}

// ReadRoom handles GET /rooms/:id (room.read).
func ReadRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		room, err := svc.ReadRoom(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, room)
	}
}

type updateRoomRequest struct {
	TimeUpper *time.Time      `json:"time_upper"`
	Reserve   *int            `json:"reserve"`
	Tags      json.RawMessage `json:"tags"`
}

// UpdateRoom handles PATCH /rooms/:id (room.update).
func UpdateRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		var req updateRoomRequest
		if !bindJSON(c, &req) {
			return
		}
		room, err := svc.UpdateRoom(c.Request.Context(), id, session.UpdateRoomInput{
			TimeUpper: req.TimeUpper,
			Reserve:   req.Reserve,
			Tags:      req.Tags,
		}, time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, room)
	}
}

// CloseRoom handles POST /rooms/:id/close (room.close).
func CloseRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		room, err := svc.CloseRoom(c.Request.Context(), id, callerAgentID(c), time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, room)
	}
}

// EnterRoom handles POST /rooms/:id/enter (room.enter).
func EnterRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		agent, rtc, err := svc.EnterRoom(c.Request.Context(), id, session.EnterRoomInput{
			AgentID: callerAgentID(c),
			Label:   callerAgentLabel(c),
		}, time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, gin.H{"agent": agent, "rtc": rtc})
	}
}

// LeaveRoom handles POST /rooms/:id/leave (room.leave).
func LeaveRoom(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		if err := svc.LeaveRoom(c.Request.Context(), id, callerAgentID(c)); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)
	}
}

// ListAgents handles GET /rooms/:id/agents?offset&limit (agent.list).
func ListAgents(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		agents, err := svc.ListAgents(c.Request.Context(), id, queryInt(c, "offset", 0), queryInt(c, "limit", 100))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, agents)
	}
}

// roomAudienceResolver resolves a room path param's audience for
// middleware.RequireAudience.
func roomAudienceResolver(svc *session.Service) func(c *gin.Context) (string, bool) {
	return func(c *gin.Context) (string, bool) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return "", false
		}
		room, err := svc.ReadRoom(c.Request.Context(), id)
		if err != nil || room == nil {
			return "", false
		}
		return room.Audience, true
	}
}
