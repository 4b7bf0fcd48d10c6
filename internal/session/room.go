package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/outbox"
)

// commit finalizes a transaction, wrapping the error as a database failure.
func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// CreateRoomInput is the room.create request body (spec §4.1).
type CreateRoomInput struct {
	ClassroomID      uuid.UUID
	Audience         string
	Time             models.TimeRange
	RtcSharingPolicy models.RtcSharingPolicy
	Reserve          *int
	Tags             json.RawMessage
	Infinite         bool
}

// CreateRoom implements room.create: rejects empty time, persists the
// room in `scheduled` state (derived, not stored), enqueues room.create.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	room := &models.Room{
		ClassroomID:      in.ClassroomID,
		Audience:         in.Audience,
		Time:             in.Time,
		RtcSharingPolicy: in.RtcSharingPolicy,
		Reserve:          in.Reserve,
		Tags:             in.Tags,
		Infinite:         in.Infinite,
	}
	if err := room.ValidateInvariants(); err != nil {
		return nil, apperr.Wrap(apperr.KindMessageParsingFailed, err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.InsertRoom(ctx, tx, room); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := outbox.Enqueue(ctx, tx, "room", room.ID, models.StageRoomCreate, models.TopicAudience, room.Audience, room); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return room, nil
}

// ReadRoom implements room.read.
func (s *Service) ReadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

// UpdateRoomInput is a partial room.update request; nil fields are unchanged.
type UpdateRoomInput struct {
	TimeUpper *time.Time
	Reserve   *int
	Tags      json.RawMessage
}

// UpdateRoom implements room.update: allowed only while not closed;
// time.upper may only move earlier, never reintroduce unboundedness once
// bounded, and never past now. A closing-in-the-past update also emits
// room.close (spec §4.1).
func (s *Service) UpdateRoom(ctx context.Context, id uuid.UUID, in UpdateRoomInput, now time.Time) (*models.Room, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if room.Status(now) == models.RoomClosed {
		return nil, apperr.New(apperr.KindRoomClosed, id.String())
	}

	closing := false
	if in.TimeUpper != nil {
		if room.Time.Upper != nil && in.TimeUpper.After(*room.Time.Upper) {
			return nil, apperr.New(apperr.KindMessageParsingFailed, "time.upper may only move earlier")
		}
		if in.TimeUpper.Before(now) {
			// moving the close time into the past is a close.
			closing = true
		}
		room.Time.Upper = in.TimeUpper
	}
	if in.Reserve != nil {
		room.Reserve = in.Reserve
	}
	if in.Tags != nil {
		room.Tags = in.Tags
	}
	if err := room.ValidateInvariants(); err != nil {
		return nil, apperr.Wrap(apperr.KindMessageParsingFailed, err)
	}

	if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := outbox.Enqueue(ctx, tx, "room", room.ID, models.StageRoomUpdate, models.TopicAudience, room.Audience, room); err != nil {
		return nil, err
	}
	if closing {
		if err := s.enqueueRoomClose(ctx, tx, room); err != nil {
			return nil, err
		}
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return room, nil
}

// CloseRoom implements room.close: idempotent, stamps closed_by.
func (s *Service) CloseRoom(ctx context.Context, id uuid.UUID, closedBy uuid.UUID, now time.Time) (*models.Room, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if room.Status(now) == models.RoomClosed {
		return room, nil // idempotent
	}
	room.Time.Upper = &now
	room.ClosedBy = &closedBy
	if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := s.enqueueRoomClose(ctx, tx, room); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) enqueueRoomClose(ctx context.Context, tx pgx.Tx, room *models.Room) error {
	if err := outbox.Enqueue(ctx, tx, "room", room.ID, models.StageRoomClose, models.TopicAudience, room.Audience, room); err != nil {
		return err
	}
	// spec §4.4: room.close also goes to the room topic, possibly more
	// than once — consumers dedupe by (entity_type, id).
	return outbox.Enqueue(ctx, tx, "room", room.ID, models.StageRoomClose, models.TopicRoom, room.ID.String(), room)
}

// EnterRoomInput is the room.enter request.
type EnterRoomInput struct {
	AgentID uuid.UUID
	Label   string
}

// EnterRoom implements room.enter: creates or refreshes the Agent row in
// in_progress; for owned rooms, implicitly creates the caller's RTC if
// absent (spec §4.1).
func (s *Service) EnterRoom(ctx context.Context, roomID uuid.UUID, in EnterRoomInput, now time.Time) (*models.Agent, *models.Rtc, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Status(now) == models.RoomClosed {
		return nil, nil, apperr.New(apperr.KindRoomClosed, roomID.String())
	}

	agent := &models.Agent{AgentID: in.AgentID, RoomID: roomID, Status: models.AgentInProgress, Label: in.Label}
	if err := s.repo.UpsertAgent(ctx, tx, agent); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if room.Host == nil {
		room.Host = &in.AgentID
		if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		if err := s.repo.DeleteOrphanedRoom(ctx, tx, roomID); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
	}

	var rtc *models.Rtc
	if room.RtcSharingPolicy == models.PolicyOwned {
		count, err := s.repo.CountRtcsForPolicy(ctx, tx, roomID, in.AgentID, models.PolicyOwned)
		if err != nil {
			return nil, nil, err
		}
		if count == 0 {
			rtc = &models.Rtc{RoomID: roomID, CreatedBy: in.AgentID}
			if err := s.repo.InsertRtc(ctx, tx, rtc); err != nil {
				return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
			}
			room.BoundClose(s.cfg.MaxRoomDuration)
			if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
				return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
			}
			if err := outbox.Enqueue(ctx, tx, "rtc", rtc.ID, models.StageRtcCreate, models.TopicRoom, roomID.String(), rtc); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := outbox.Enqueue(ctx, tx, "room", roomID, models.StageRoomEnter, models.TopicRoom, roomID.String(), agent); err != nil {
		return nil, nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, nil, err
	}
	return agent, rtc, nil
}

// ConfirmAgentReady transitions an Agent to ready after broker
// subscription confirmation (spec §3 Agent invariant).
func (s *Service) ConfirmAgentReady(ctx context.Context, roomID, agentID uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.repo.SetAgentStatus(ctx, tx, roomID, agentID, models.AgentReady); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return commit(ctx, tx)
}

// LeaveRoom implements room.leave: marks absence; demotes host and
// enqueues OrphanedRoom if the host left (spec §4.1).
func (s *Service) LeaveRoom(ctx context.Context, roomID, agentID uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAgent(ctx, tx, roomID, agentID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}

	wasHost := room.Host != nil && *room.Host == agentID
	if wasHost {
		room.Host = nil
		if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
			return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		if err := s.repo.InsertOrphanedRoom(ctx, tx, roomID); err != nil {
			return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
	}

	if err := outbox.Enqueue(ctx, tx, "room", roomID, models.StageRoomLeave, models.TopicRoom, roomID.String(), map[string]interface{}{
		"agent_id": agentID, "was_host": wasHost,
	}); err != nil {
		return err
	}
	return commit(ctx, tx)
}
