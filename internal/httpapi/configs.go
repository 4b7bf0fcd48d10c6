package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/response"
)

// ReadWriterConfig handles GET /rooms/:id/configs/writer?rtc_id=...
// (agent_writer_config.read).
func ReadWriterConfig(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rtcID, ok := queryUUID(c, "rtc_id")
		if !ok {
			return
		}
		cfg, err := svc.ReadWriterConfig(c.Request.Context(), rtcID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, cfg)
	}
}

type writerConfigRequest struct {
	RtcID     string `json:"rtc_id" binding:"required"`
	SendVideo *bool  `json:"send_video"`
	SendAudio *bool  `json:"send_audio"`
	VideoRemb *int64 `json:"video_remb"`
}

// UpdateWriterConfig handles POST /rooms/:id/configs/writer
// (agent_writer_config.update).
func UpdateWriterConfig(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req writerConfigRequest
		if !bindJSON(c, &req) {
			return
		}
		rtcID, err := parseUUID(req.RtcID)
		if err != nil {
			response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "invalid rtc_id"))
			return
		}
		cfg, err := svc.UpdateWriterConfig(c.Request.Context(), rtcID, models.WriterConfigDelta{
			SendVideo: req.SendVideo,
			SendAudio: req.SendAudio,
			VideoRemb: req.VideoRemb,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, cfg)
	}
}

// WriterConfigSnapshot handles GET /rooms/:id/configs/writer/snapshot
// (writer_config_snapshot.read).
func WriterConfigSnapshot(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rtcID, ok := queryUUID(c, "rtc_id")
		if !ok {
			return
		}
		snapshots, err := svc.ListWriterConfigSnapshots(c.Request.Context(), rtcID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, snapshots)
	}
}

// ReadReaderConfig handles GET /rooms/:id/configs/reader?rtc_id=...
// (agent_reader_config.read). A caller reads its own reader policy.
func ReadReaderConfig(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rtcID, ok := queryUUID(c, "rtc_id")
		if !ok {
			return
		}
		cfg, err := svc.ReadReaderConfig(c.Request.Context(), rtcID, callerAgentID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, cfg)
	}
}

type readerConfigRequest struct {
	RtcID        string `json:"rtc_id" binding:"required"`
	ReceiveVideo *bool  `json:"receive_video"`
	ReceiveAudio *bool  `json:"receive_audio"`
}

// UpdateReaderConfig handles POST /rooms/:id/configs/reader
// (agent_reader_config.update). A caller updates its own reader policy.
func UpdateReaderConfig(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req readerConfigRequest
		if !bindJSON(c, &req) {
			return
		}
		rtcID, err := parseUUID(req.RtcID)
		if err != nil {
			response.Error(c, apperr.New(apperr.KindMessageParsingFailed, "invalid rtc_id"))
			return
		}
		cfg, err := svc.UpdateReaderConfig(c.Request.Context(), rtcID, callerAgentID(c), models.ReaderConfigDelta{
			ReceiveVideo: req.ReceiveVideo,
			ReceiveAudio: req.ReceiveAudio,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, cfg)
	}
}
