package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/balancer"
	"github.com/aura-webinar/backend/internal/models"
)

// CreateRtc implements rtc.create: constrained by the room's sharing
// policy (spec §3) and bounds an unbounded room's close time on the
// room's first RTC.
func (s *Service) CreateRtc(ctx context.Context, roomID, createdBy uuid.UUID, now time.Time) (*models.Rtc, error) {
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
		return nil, apperr.New(apperr.KindRoomClosed, roomID.String())
	}
	if room.RtcSharingPolicy == models.PolicyNone {
		return nil, apperr.New(apperr.KindAccessDenied, "room does not permit RTCs")
	}
	count, err := s.repo.CountRtcsForPolicy(ctx, tx, roomID, createdBy, room.RtcSharingPolicy)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.New(apperr.KindAccessDenied, "rtc already exists for this sharing policy")
	}

	rtc := &models.Rtc{RoomID: roomID, CreatedBy: createdBy}
	if err := s.repo.InsertRtc(ctx, tx, rtc); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	room.BoundClose(s.cfg.MaxRoomDuration)
	if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := enqueueRtcCreate(ctx, tx, rtc); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return rtc, nil
}

// ListRtcs implements rtc.list.
func (s *Service) ListRtcs(ctx context.Context, roomID uuid.UUID) ([]models.Rtc, error) {
	return s.repo.ListRtcs(ctx, roomID)
}

// ReadRtc implements rtc.read.
func (s *Service) ReadRtc(ctx context.Context, roomID, rtcID uuid.UUID) (*models.Rtc, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	rtc, err := s.repo.GetRtc(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	if rtc.RoomID != roomID {
		return nil, apperr.New(apperr.KindRtcNotFound, rtcID.String())
	}
	return rtc, nil
}

// meshSize approximates spec §4.2's "mesh peers" term for owned rooms: the
// number of agents currently present. Outside owned rooms the balancer
// already clamps any value below 1 up to 1.
func (s *Service) meshSize(ctx context.Context, room *models.Room) int {
	if room.RtcSharingPolicy != models.PolicyOwned {
		return 1
	}
	agents, err := s.repo.ListAgents(ctx, room.ID, 0, 1000)
	if err != nil || len(agents) == 0 {
		return 1
	}
	return len(agents)
}

func reserveOf(room *models.Room) int {
	if room.Reserve == nil {
		return 0
	}
	return *room.Reserve
}

// ConnectRtc implements rtc.connect: validates room/agent state, pins to
// an existing stream's backend or asks the balancer for one, creates the
// backend handle, and records the AgentConnection in `in_progress` (spec
// §4.1, §4.2). The backend round-trip happens outside any database
// transaction, per the scheduling model in spec §5.
func (s *Service) ConnectRtc(ctx context.Context, roomID, rtcID, agentID uuid.UUID, intent models.ConnectIntent, label string, now time.Time) (*models.AgentConnection, error) {
	existing, backendID, err := s.resolveConnectBackend(ctx, roomID, rtcID, agentID, intent, now)
	if err != nil {
		return nil, err
	}

	backendRow, err := s.repo.GetBackend(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Connect(ctx, backendID, backendRow.JanusURL); err != nil {
		return nil, err
	}

	if intent == models.IntentWrite {
		_, err = s.engine.CreatePublisher(ctx, backendID, backendRow.SessionID, backendRow.HandleID, rtcID, label)
	} else {
		_, err = s.engine.Subscribe(ctx, backendID, backendRow.SessionID, backendRow.HandleID, rtcID)
	}
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	conn := &models.AgentConnection{
		AgentID: agentID, RtcID: rtcID, HandleID: backendRow.HandleID, BackendID: backendID,
		Intent: intent, Status: models.ConnInProgress, Label: label,
	}
	if err := s.repo.InsertAgentConnection(ctx, tx, conn); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}

	if intent == models.IntentWrite && existing == nil {
		stream := &models.JanusRtcStream{RtcID: rtcID, BackendID: backendID, HandleID: backendRow.HandleID, Label: label, SentBy: agentID}
		if err := s.repo.InsertStream(ctx, tx, stream); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		if err := enqueueStreamUpdate(ctx, tx, stream); err != nil {
			return nil, err
		}
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return conn, nil
}

// resolveConnectBackend validates the request and decides which backend
// serves it, committing any room.backend_id pin it establishes.
func (s *Service) resolveConnectBackend(ctx context.Context, roomID, rtcID, agentID uuid.UUID, intent models.ConnectIntent, now time.Time) (*models.JanusRtcStream, uuid.UUID, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	room, err := s.repo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if room.Status(now) != models.RoomOpen {
		return nil, uuid.Nil, apperr.New(apperr.KindRoomClosed, roomID.String())
	}
	agent, err := s.repo.GetAgent(ctx, tx, roomID, agentID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if agent.Status != models.AgentReady {
		return nil, uuid.Nil, apperr.New(apperr.KindAccessDenied, "agent has not confirmed readiness")
	}
	rtc, err := s.repo.GetRtc(ctx, tx, rtcID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if rtc.RoomID != roomID {
		return nil, uuid.Nil, apperr.New(apperr.KindRtcNotFound, rtcID.String())
	}

	existing, err := s.repo.GetLiveStream(ctx, tx, rtcID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	var backendID uuid.UUID
	if existing != nil {
		backendID = existing.BackendID
	} else {
		backends, loads, err := s.repo.LoadBalancerCandidates(ctx)
		if err != nil {
			return nil, uuid.Nil, err
		}
		candidates := make([]balancer.Candidate, 0, len(backends))
		for _, b := range backends {
			l := loads[b.ID]
			candidates = append(candidates, balancer.Candidate{
				Backend: b,
				Load: balancer.Load{
					ActivePublishers:      l.Publishers,
					ActiveOwnedPublishers: l.OwnedPublishers,
					ActiveSubscribers:     l.Subscribers,
				},
			})
		}
		req := balancer.Request{
			Room:             *room,
			Intent:           intent,
			MeshSize:         s.meshSize(ctx, room),
			CompliantAPI:     s.cfg.CompliantAPIVersion,
			PinnedBackend:    room.BackendID,
			RoomReserve:      reserveOf(room),
			RoomHoldsReserve: room.BackendID != nil,
		}
		picked, err := balancer.Pick(candidates, req)
		if err != nil {
			return nil, uuid.Nil, err
		}
		backendID = picked.ID
		if room.BackendID == nil {
			room.BackendID = &backendID
			if err := s.repo.UpdateRoom(ctx, tx, room); err != nil {
				return nil, uuid.Nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
			}
		}
	}
	if err := commit(ctx, tx); err != nil {
		return nil, uuid.Nil, err
	}
	return existing, backendID, nil
}
