package response

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/internal/apperr"
)

// Problem is an RFC 7807 Problem Details body (spec §6 "Error payload").
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
}

// titleByKind gives a short human title for a slug; falls back to the
// slug itself when unlisted.
var titleByKind = map[apperr.Kind]string{
	apperr.KindRoomNotFound:        "Room not found",
	apperr.KindRoomClosed:          "Room is closed",
	apperr.KindRtcNotFound:         "RTC not found",
	apperr.KindNoAvailableBackends: "No available backends",
	apperr.KindCapacityExceeded:    "Backend capacity exceeded",
	apperr.KindBackendNotFound:     "Backend not found",
	apperr.KindAccessDenied:        "Access denied",
}

// Error renders err (ideally an *apperr.Error) as an RFC 7807 problem
// body with the status apperr maps for its slug.
func Error(c *gin.Context, err error) {
	appErr, ok := asAppErr(err)
	if !ok {
		appErr = apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	title, ok := titleByKind[appErr.Kind]
	if !ok {
		title = string(appErr.Kind)
	}
	c.JSON(appErr.Status(), Problem{
		Type:   string(appErr.Kind),
		Title:  title,
		Detail: appErr.Detail,
		Status: appErr.Status(),
	})
}

func asAppErr(err error) (*apperr.Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if appErr, ok := e.(*apperr.Error); ok {
			return appErr, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}
