package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

type groupAgentRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	Number  int    `json:"number"`
}

type updateGroupsRequest struct {
	Groups []groupAgentRequest `json:"groups" binding:"required"`
}

// UpdateGroups handles POST /rooms/:id/groups (group.update).
func UpdateGroups(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		var req updateGroupsRequest
		if !bindJSON(c, &req) {
			return
		}
		groups := make([]models.GroupAgent, 0, len(req.Groups))
		for _, g := range req.Groups {
			agentID, err := parseUUID(g.AgentID)
			if err != nil {
				response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "invalid agent_id in groups"))
				return
			}
			groups = append(groups, models.GroupAgent{RoomID: roomID, AgentID: agentID, Number: g.Number})
		}
		result, err := svc.UpdateGroups(c.Request.Context(), roomID, groups)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, result)
	}
}

// ListGroups handles GET /rooms/:id/groups?within_group (group.list).
// within_group, when present, narrows the result to that group number.
func ListGroups(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := pathUUID(c, "id", apperr.KindRoomNotFound)
		if !ok {
			return
		}
		groups, err := svc.ListGroups(c.Request.Context(), roomID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if raw := c.Query("within_group"); raw != "" {
			n := queryInt(c, "within_group", -1)
			filtered := make([]models.GroupAgent, 0, len(groups))
			for _, g := range groups {
				if g.Number == n {
					filtered = append(filtered, g)
				}
			}
			groups = filtered
		}
		response.OK(c, groups)
	}
}
