package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

// ListStreams handles GET /rooms/:id/streams?rtc_id&time&offset&limit
// (rtc_stream.list).
func ListStreams(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		filter := session.StreamFilter{
			Since:  queryTime(c, "time"),
			Offset: queryInt(c, "offset", 0),
			Limit:  queryInt(c, "limit", 100),
		}
		if raw := c.Query("rtc_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "invalid rtc_id"))
				return
			}
			filter.RtcID = &id
		}
		streams, err := svc.ListStreams(c.Request.Context(), roomID, filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, streams)
	}
}
