package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/auth"
	"github.com/aura-webinar/backend/internal/middleware"
	"github.com/aura-webinar/backend/internal/recordings"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/internal/vacuum"
)

// Deps bundles everything the router needs to mount spec §6's routes.
type Deps struct {
	Session     *session.Service
	Recordings  *recordings.Handler
	Sweeper     *vacuum.Sweeper
	JWT         *auth.JWTService
	Logger      *zap.Logger
	CORSOrigins string
}

// NewRouter assembles the gin engine for the `/api/v1` HTTP API (spec §6).
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Logger), middleware.CORS(d.CORSOrigins))
	r.GET("/healthz", healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.JWT(d.JWT))

	rooms := api.Group("/rooms")
	rooms.Use(middleware.RequireAudience(roomAudienceResolver(d.Session)))
	rooms.POST("", CreateRoom(d.Session))
	rooms.GET("/:id", ReadRoom(d.Session))
	rooms.PATCH("/:id", UpdateRoom(d.Session))
	rooms.POST("/:id/close", CloseRoom(d.Session))
	rooms.POST("/:id/enter", EnterRoom(d.Session))
	rooms.POST("/:id/leave", LeaveRoom(d.Session))
	rooms.GET("/:id/agents", ListAgents(d.Session))
	rooms.GET("/:id/configs/reader", ReadReaderConfig(d.Session))
	rooms.POST("/:id/configs/reader", UpdateReaderConfig(d.Session))
	rooms.GET("/:id/configs/writer", ReadWriterConfig(d.Session))
	rooms.POST("/:id/configs/writer", UpdateWriterConfig(d.Session))
	rooms.GET("/:id/configs/writer/snapshot", WriterConfigSnapshot(d.Session))
	rooms.POST("/:id/rtcs", CreateRtc(d.Session))
	rooms.GET("/:id/rtcs", ListRtcs(d.Session))
	rooms.GET("/:id/streams", ListStreams(d.Session))
	rooms.POST("/:id/groups", UpdateGroups(d.Session))
	rooms.GET("/:id/groups", ListGroups(d.Session))
	if d.Recordings != nil {
		rooms.GET("/:id/recordings", d.Recordings.ListByRoom)
	}

	rtcs := api.Group("/rtcs")
	rtcs.Use(middleware.RequireAudience(rtcAudienceResolver(d.Session)))
	rtcs.GET("/:id", ReadRtc(d.Session))
	rtcs.POST("/:id/streams", ConnectRtc(d.Session))
	if d.Recordings != nil {
		rtcs.GET("/:id/recording/download-url", d.Recordings.GenerateDownloadURL)
	}

	// rtc_signal.create is scoped by the caller's own AgentConnection row
	// (see signal.go), not by a path-addressable audience, so it mounts
	// directly on api rather than under rooms/rtcs.
	api.POST("/streams/signal", Signal(d.Session))

	if d.Sweeper != nil {
		api.POST("/system/vacuum", TriggerVacuum(d.Sweeper))
	}

	return r
}
