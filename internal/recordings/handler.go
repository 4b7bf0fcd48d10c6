package recordings

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/pkg/response"
	"github.com/aura-webinar/backend/pkg/storage"
)

// Handler serves recording read endpoints: listing a room's finalized
// recordings and handing out presigned download links.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a recordings handler. s3 may be nil when archival to
// long-term storage is not configured; download then fails with
// not_implemented (501).
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// ListByRoom handles GET /rooms/:id/recordings.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.New(apperr.KindRoomNotFound, "invalid room id"))
		return
	}
	list, err := h.repo.ListByRoom(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GenerateDownloadURL handles GET /rtcs/:id/recording/download-url. Only
// ready recordings that have been archived to S3 (s3_key set) qualify.
func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	rtcID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.New(apperr.KindRtcNotFound, "invalid rtc id"))
		return
	}
	rec, err := h.repo.GetByRtcID(c.Request.Context(), rtcID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if rec == nil || rec.Status != models.RecordingReady || rec.S3Key == "" {
		response.Error(c, apperr.New(apperr.KindBackendRecordingMissing, "recording not ready for download"))
		return
	}
	if h.s3 == nil {
		response.Error(c, apperr.New(apperr.KindNotImplemented, "recording archival not configured"))
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.UploadRecordingsBucket(), rec.S3Key, expire)
	if err != nil {
		h.logger.Error("presign recording download failed", zap.Error(err), zap.String("rtc_id", rtcID.String()))
		response.Error(c, apperr.Wrap(apperr.KindBackendRequestFailed, err))
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}
