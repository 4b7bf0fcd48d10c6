package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

// CreateRtc handles POST /rooms/:id/rtcs (rtc.create).
func CreateRtc(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		rtc, err := svc.CreateRtc(c.Request.Context(), roomID, callerAgentID(c), time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, rtc)
	}
}

// ListRtcs handles GET /rooms/:id/rtcs (rtc.list).
func ListRtcs(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		rtcs, err := svc.ListRtcs(c.Request.Context(), roomID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, rtcs)
	}
}

// ReadRtc handles GET /rtcs/:id (rtc.read). The route carries no room id,
// so it reads the bare RTC row rather than svc.ReadRtc's room-scoped form.
func ReadRtc(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rtcID, ok := pathUUID(c, "id", apperr.KindRtcNotFound)
		if !ok {
			return
		}
		rtc, err := svc.GetRtcByID(c.Request.Context(), rtcID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, rtc)
	}
}

type connectRtcRequest struct {
	Intent models.ConnectIntent `json:"intent" binding:"required"`
	Label  string                `json:"label"`
}

// ConnectRtc handles POST /rtcs/:id/streams (rtc.connect).
func ConnectRtc(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rtcID, ok := pathUUID(c, "id", apperr.KindRtcNotFound)
		if !ok {
			return
		}
		var req connectRtcRequest
		if !bindJSON(c, &req) {
			return
		}
		rtc, err := svc.GetRtcByID(c.Request.Context(), rtcID)
		if err != nil {
			response.Error(c, err)
			return
		}
		conn, err := svc.ConnectRtc(c.Request.Context(), rtc.RoomID, rtcID, callerAgentID(c), req.Intent, req.Label, time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, conn)
	}
}

// rtcAudienceResolver resolves an rtc path param's owning room's
// audience for middleware.RequireAudience.
func rtcAudienceResolver(svc *session.Service) func(c *gin.Context) (string, bool) {
	return func(c *gin.Context) (string, bool) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return "", false
		}
		rtc, err := svc.GetRtcByID(c.Request.Context(), id)
		if err != nil || rtc == nil {
			return "", false
		}
		room, err := svc.ReadRoom(c.Request.Context(), rtc.RoomID)
		if err != nil || room == nil {
			return "", false
		}
		return room.Audience, true
	}
}
