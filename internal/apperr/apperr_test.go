package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Status(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, New(KindRoomNotFound, "").Status())
	assert.Equal(t, http.StatusForbidden, New(KindAccessDenied, "").Status())
	assert.Equal(t, http.StatusServiceUnavailable, New(KindNoAvailableBackends, "").Status())
	assert.Equal(t, http.StatusInternalServerError, New(Kind("unregistered_kind"), "").Status())
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "room_not_found", New(KindRoomNotFound, "").Error())
	assert.Equal(t, "room_not_found: nope", New(KindRoomNotFound, "nope").Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindDatabaseQueryFailed, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "database_query_failed: connection refused", err.Error())
}

func TestIs(t *testing.T) {
	err := New(KindRtcNotFound, "x")
	assert.True(t, Is(err, KindRtcNotFound))
	assert.False(t, Is(err, KindRoomNotFound))
	assert.False(t, Is(errors.New("plain"), KindRtcNotFound))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAccessDenied, KindOf(New(KindAccessDenied, "")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
