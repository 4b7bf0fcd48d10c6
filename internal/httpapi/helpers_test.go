package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestContext(url string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c, w
}

func TestQueryInt_UsesFallbackWhenAbsent(t *testing.T) {
	c, _ := newTestContext("/?limit=")
	assert.Equal(t, 42, queryInt(c, "limit", 42))
}

func TestQueryInt_ParsesPresentValue(t *testing.T) {
	c, _ := newTestContext("/?limit=10")
	assert.Equal(t, 10, queryInt(c, "limit", 42))
}

func TestQueryInt_FallsBackOnGarbage(t *testing.T) {
	c, _ := newTestContext("/?limit=not-a-number")
	assert.Equal(t, 42, queryInt(c, "limit", 42))
}

func TestQueryTime_ParsesRFC3339(t *testing.T) {
	c, _ := newTestContext("/?time=2026-01-02T15:04:05Z")
	got := queryTime(c, "time")
	if assert.NotNil(t, got) {
		assert.True(t, got.Equal(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
	}
}

func TestQueryTime_NilWhenAbsent(t *testing.T) {
	c, _ := newTestContext("/")
	assert.Nil(t, queryTime(c, "time"))
}

func TestQueryUUID_RequiresValue(t *testing.T) {
	c, w := newTestContext("/")
	_, ok := queryUUID(c, "rtc_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryUUID_ParsesValidValue(t *testing.T) {
	id := uuid.New()
	c, _ := newTestContext("/?rtc_id=" + id.String())
	got, ok := queryUUID(c, "rtc_id")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestParseUUID_RejectsGarbage(t *testing.T) {
	_, err := parseUUID("not-a-uuid")
	assert.Error(t, err)
}
