package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// GetLatestStreamForRtc supports the vacuum sweep: identifying which
// backend holds an RTC's recording.
func (s *Service) GetLatestStreamForRtc(ctx context.Context, rtcID uuid.UUID) (*models.JanusRtcStream, error) {
	return s.repo.GetLatestStreamForRtc(ctx, rtcID)
}

// ListBackends supports the vacuum sweep's per-backend upload/health pass.
func (s *Service) ListBackends(ctx context.Context) ([]models.JanusBackend, error) {
	backends, _, err := s.repo.LoadBalancerCandidates(ctx)
	return backends, err
}

// ListClosedUnswept supports the vacuum sweep: rooms past their time
// range that have not yet had their presence/connection state cleaned up.
func (s *Service) ListClosedUnswept(ctx context.Context, before time.Time) ([]models.Room, error) {
	return s.repo.ListClosedUnswept(ctx, before)
}

// ListOrphanedRoomsOlderThan supports the vacuum sweep's forced-closure
// pass (spec §4.5).
func (s *Service) ListOrphanedRoomsOlderThan(ctx context.Context, cutoff time.Time) ([]models.OrphanedRoom, error) {
	return s.repo.ListOrphanedRoomsOlderThan(ctx, cutoff)
}

// SweepRoom deletes a closed room's agent presence and connections and
// re-emits room.close (spec §4.4: consumers dedupe, so a duplicate emit
// across sweeps is harmless), then marks the room swept so later passes
// skip it.
func (s *Service) SweepRoom(ctx context.Context, roomID uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteConnectionsByRoom(ctx, tx, roomID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := s.repo.DeleteAgentsByRoom(ctx, tx, roomID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := s.enqueueRoomClose(ctx, tx, room); err != nil {
		return err
	}
	if err := s.repo.MarkRoomSwept(ctx, tx, roomID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return commit(ctx, tx)
}

// ForceCloseOrphan closes a room whose host never returned within
// orphaned_room_timeout (spec §4.5). Unlike CloseRoom, there is no
// closing agent to attribute the close to.
func (s *Service) ForceCloseOrphan(ctx context.Context, roomID uuid.UUID, now time.Time) (*models.Room, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status(now) == models.RoomClosed {
		if err := s.repo.DeleteOrphanedRoom(ctx, tx, roomID); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		return room, commit(ctx, tx)
	}
	room.Time.Upper = &now
	if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := s.enqueueRoomClose(ctx, tx, room); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteOrphanedRoom(ctx, tx, roomID); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return room, nil
}
