package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/apperr"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestError_KnownKind_UsesMappedTitleAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperr.New(apperr.KindRoomNotFound, "room abc123"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "room_not_found", p.Type)
	assert.Equal(t, "Room not found", p.Title)
	assert.Equal(t, "room abc123", p.Detail)
	assert.Equal(t, http.StatusNotFound, p.Status)
}

func TestError_UnlistedKind_FallsBackToSlugAsTitle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperr.New(apperr.KindNotImplemented, ""))

	p := decodeProblem(t, w)
	assert.Equal(t, "not_implemented", p.Type)
	assert.Equal(t, "not_implemented", p.Title)
}

func TestError_WrappedAppErr_IsUnwrapped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	inner := apperr.New(apperr.KindRtcNotFound, "rtc missing")
	wrapped := fmt.Errorf("handler failed: %w", inner)

	Error(c, wrapped)

	assert.Equal(t, http.StatusNotFound, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "rtc_not_found", p.Type)
}

func TestError_PlainError_MapsToDatabaseQueryFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "database_query_failed", p.Type)
	assert.Equal(t, "boom", p.Detail)
}
