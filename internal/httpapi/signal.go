package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/backend"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

// signalRequest is the POST /streams/signal body. Exactly one of JSEP or
// Candidate must be set: an SDP offer/renegotiation (rtc_signal.create)
// or a trickled ICE candidate. The caller's own AgentConnection on
// RtcID scopes authorization, so no separate ownership check is needed
// here (session.Service.signal/Trickle look the connection up by the
// authenticated agent id).
type signalRequest struct {
	RtcID     uuid.UUID             `json:"rtc_id" binding:"required"`
	JSEP      *backend.JSEP         `json:"jsep"`
	Candidate *backend.ICECandidate `json:"candidate"`
}

// Signal handles POST /streams/signal (rtc_signal.create).
func Signal(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signalRequest
		if !bindJSON(c, &req) {
			return
		}
		agentID := callerAgentID(c)

		switch {
		case req.JSEP != nil:
			answer, err := svc.SignalCreate(c.Request.Context(), req.RtcID, agentID, *req.JSEP)
			if err != nil {
				response.Error(c, err)
				return
			}
			response.OK(c, gin.H{"jsep": answer})
		case req.Candidate != nil:
			if err := svc.Trickle(c.Request.Context(), req.RtcID, agentID, *req.Candidate); err != nil {
				response.Error(c, err)
				return
			}
			response.NoContent(c)
		default:
			response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "one of jsep or candidate is required"))
		}
	}
}
