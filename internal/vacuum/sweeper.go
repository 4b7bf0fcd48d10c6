// Package vacuum implements the C6 periodic sweep: it finalizes
// recordings for RTCs whose room has closed, reclaims agent/connection
// state for swept rooms, and force-closes rooms whose host abandoned
// them past the orphaned-room timeout (spec §4.5).
package vacuum

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/backend"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/recordings"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/pkg/queue"
)

// Config bundles the vacuum sweep's named tunables (spec §5, §9).
type Config struct {
	SweepInterval       time.Duration
	OrphanedRoomTimeout time.Duration
	CompliantAPIVersion string
}

// Sweeper runs the periodic C6 pass over closed rooms, pending
// recordings, and abandoned (orphaned) rooms.
type Sweeper struct {
	svc      *session.Service
	recRepo  *recordings.Repository
	engine   *backend.Engine
	archival *queue.Queue // optional; nil disables async S3 mirroring
	cfg      Config
	logger   *zap.Logger
}

// NewSweeper creates a vacuum sweeper. archival may be nil to disable
// the optional recording archival side-channel.
func NewSweeper(svc *session.Service, recRepo *recordings.Repository, engine *backend.Engine, archival *queue.Queue, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, recRepo: recRepo, engine: engine, archival: archival, cfg: cfg, logger: logger}
}

// Run drives the sweep on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		s.cfg.SweepInterval = time.Minute
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("vacuum sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass of every sub-sweep; errors are logged per item
// so one failure doesn't block the rest of the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()
	s.sweepRecordings(ctx)
	s.sweepClosedRooms(ctx, now)
	s.sweepOrphans(ctx, now)
}

// sweepClosedRooms reclaims agent/connection state for rooms whose time
// range has ended, re-emitting room.close per spec §4.4's at-least-once
// delivery (consumers dedupe).
func (s *Sweeper) sweepClosedRooms(ctx context.Context, now time.Time) {
	rooms, err := s.svc.ListClosedUnswept(ctx, now)
	if err != nil {
		s.logger.Error("list closed rooms failed", zap.Error(err))
		return
	}
	for _, room := range rooms {
		if err := s.svc.SweepRoom(ctx, room.ID); err != nil {
			s.logger.Error("sweep room failed", zap.Error(err), zap.String("room_id", room.ID.String()))
		}
	}
}

// sweepOrphans force-closes rooms whose host never returned within
// orphaned_room_timeout.
func (s *Sweeper) sweepOrphans(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.cfg.OrphanedRoomTimeout)
	orphans, err := s.svc.ListOrphanedRoomsOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("list orphaned rooms failed", zap.Error(err))
		return
	}
	for _, o := range orphans {
		if _, err := s.svc.ForceCloseOrphan(ctx, o.RoomID, now); err != nil {
			s.logger.Error("force-close orphaned room failed", zap.Error(err), zap.String("room_id", o.RoomID.String()))
		}
	}
}

// sweepRecordings issues upload requests to the backend owning each
// pending RTC's stream, restricted to backends that report the
// compliant API version (spec §4.5), and finalizes the Recording with
// the response.
func (s *Sweeper) sweepRecordings(ctx context.Context) {
	backends, err := s.svc.ListBackends(ctx)
	if err != nil {
		s.logger.Error("list backends failed", zap.Error(err))
		return
	}
	compliant := make(map[string]models.JanusBackend, len(backends))
	for _, b := range backends {
		compliant[b.ID.String()] = b
	}

	rtcs, err := s.recRepo.ListPendingForClosedRooms(ctx)
	if err != nil {
		s.logger.Error("list pending recordings failed", zap.Error(err))
		return
	}
	for _, rtc := range rtcs {
		s.sweepOneRecording(ctx, rtc, compliant)
	}
}

func (s *Sweeper) sweepOneRecording(ctx context.Context, rtc models.Rtc, backends map[string]models.JanusBackend) {
	stream, err := s.svc.GetLatestStreamForRtc(ctx, rtc.ID)
	if err != nil {
		s.logger.Error("get latest stream failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
		return
	}
	if stream == nil {
		// No publisher ever connected: nothing to finalize.
		if err := s.recRepo.MarkMissingWithEvent(ctx, rtc.RoomID, rtc.ID); err != nil {
			s.logger.Error("mark recording missing failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
		}
		return
	}

	b, ok := backends[stream.BackendID.String()]
	if !ok || b.APIVersion != s.cfg.CompliantAPIVersion {
		s.logger.Debug("skipping recording on non-compliant or unknown backend", zap.String("rtc_id", rtc.ID.String()))
		return
	}
	if err := s.engine.Connect(ctx, b.ID, b.JanusURL); err != nil {
		s.logger.Warn("connect to backend failed", zap.Error(err), zap.String("backend_id", b.ID.String()))
		return
	}
	if _, err := s.engine.Exists(ctx, b.ID, b.SessionID, b.HandleID); err != nil {
		s.logger.Warn("backend health probe failed", zap.Error(err), zap.String("backend_id", b.ID.String()))
		return
	}

	if err := s.recRepo.MarkInProgress(ctx, rtc.ID); err != nil {
		s.logger.Error("mark recording in_progress failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
		return
	}
	resp, err := s.engine.Upload(ctx, b.ID, b.SessionID, b.HandleID, rtc.ID)
	if err != nil {
		s.logger.Warn("upload request failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
		return
	}

	switch classifyUploadResponse(resp) {
	case outcomeAlreadyRunning:
		// Finalization already underway on the backend; retry next sweep.
	case outcomeReady:
		segments := make([]models.Segment, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			segments = append(segments, models.Segment{StartMs: seg.StartMs, StopMs: seg.StopMs})
		}
		if err := s.recRepo.MarkReadyWithEvent(ctx, rtc.RoomID, rtc.ID, *resp.StartedAt, segments, resp.MjrDumpsURIs); err != nil {
			s.logger.Error("mark recording ready failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
			return
		}
		s.enqueueArchival(ctx, rtc.ID, resp.MjrDumpsURIs)
	default: // outcomeMissing
		if err := s.recRepo.MarkMissingWithEvent(ctx, rtc.RoomID, rtc.ID); err != nil {
			s.logger.Error("mark recording missing failed", zap.Error(err), zap.String("rtc_id", rtc.ID.String()))
		}
	}
}

type uploadOutcome int

const (
	outcomeMissing uploadOutcome = iota
	outcomeAlreadyRunning
	outcomeReady
)

// classifyUploadResponse maps a backend's upload response to a
// finalization outcome. A recording is ready only when both started_at
// and at least one segment are present (spec §8's ready invariant);
// anything else short of already_running is treated as missing so the
// Recording reaches a terminal state rather than sticking in_progress.
func classifyUploadResponse(resp *backend.PluginResponse) uploadOutcome {
	switch {
	case resp.Videoroom == "already_running":
		return outcomeAlreadyRunning
	case resp.StartedAt != nil && len(resp.Segments) > 0 && !resp.Missing:
		return outcomeReady
	default:
		return outcomeMissing
	}
}

// enqueueArchival fires the optional S3-mirroring side-channel for a
// newly-ready recording. archival being nil disables it entirely.
func (s *Sweeper) enqueueArchival(ctx context.Context, rtcID uuid.UUID, uris []string) {
	if s.archival == nil || len(uris) == 0 {
		return
	}
	payload := queue.RecordingArchivalPayload{RtcID: rtcID, SourceURI: uris[0]}
	if err := s.archival.EnqueueRecordingArchival(ctx, payload); err != nil {
		s.logger.Warn("enqueue recording archival failed", zap.Error(err), zap.String("rtc_id", rtcID.String()))
	}
}
