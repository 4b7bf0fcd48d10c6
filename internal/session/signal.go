package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/backend"
	"github.com/aura-webinar/backend/internal/models"
)

// SignalCreate implements signal.create: the initial SDP offer for a
// connection created by rtc.connect.
func (s *Service) SignalCreate(ctx context.Context, rtcID, agentID uuid.UUID, jsep backend.JSEP) (*backend.JSEP, error) {
	return s.signal(ctx, rtcID, agentID, jsep)
}

// SignalUpdate implements signal.update: a renegotiation offer on an
// already-connected handle (trickled candidates go through Trickle).
func (s *Service) SignalUpdate(ctx context.Context, rtcID, agentID uuid.UUID, jsep backend.JSEP) (*backend.JSEP, error) {
	return s.signal(ctx, rtcID, agentID, jsep)
}

func (s *Service) signal(ctx context.Context, rtcID, agentID uuid.UUID, jsep backend.JSEP) (*backend.JSEP, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	conn, err := s.repo.GetConnection(ctx, tx, agentID, rtcID)
	if err != nil {
		return nil, err
	}
	if err := backend.ClassifyJSEP(jsep, conn.Intent); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	backendRow, err := s.repo.GetBackend(ctx, conn.BackendID)
	if err != nil {
		return nil, err
	}
	_, answer, err := s.engine.Signal(ctx, conn.BackendID, backendRow.SessionID, conn.HandleID, rtcID, &jsep)
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// Trickle forwards one ICE candidate for an in-progress or connected handle.
func (s *Service) Trickle(ctx context.Context, rtcID, agentID uuid.UUID, candidate backend.ICECandidate) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	conn, err := s.repo.GetConnection(ctx, tx, agentID, rtcID)
	if err != nil {
		return err
	}
	if err := commit(ctx, tx); err != nil {
		return err
	}
	backendRow, err := s.repo.GetBackend(ctx, conn.BackendID)
	if err != nil {
		return err
	}
	return s.engine.Trickle(ctx, conn.BackendID, backendRow.SessionID, conn.HandleID, candidate)
}

// handleWebrtcup transitions a connection to connected and, for its
// publisher, emits the stream's time=[t0,∞) update (spec §4.4 webrtcup is
// an emit trigger for rtc_stream.update).
func (s *Service) handleWebrtcup(ctx context.Context, backendID uuid.UUID, handleID int64) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	conns, err := s.repo.ListConnectionsByBackend(ctx, backendID)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if c.HandleID != handleID {
			continue
		}
		if err := s.repo.SetConnectionStatus(ctx, tx, c.AgentID, c.RtcID, models.ConnConnected); err != nil {
			return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		if c.Intent == models.IntentWrite {
			stream, err := s.repo.GetLiveStream(ctx, tx, c.RtcID)
			if err != nil {
				return err
			}
			if stream != nil {
				if err := enqueueStreamUpdate(ctx, tx, stream); err != nil {
					return err
				}
			}
		}
		break
	}
	return commit(ctx, tx)
}

// handleTeardown implements the shared tail of hangup/detach/backend loss: closes
// the publisher's stream (if any) and removes the connection, emitting
// rtc_stream.update when a stream closes (spec §4.1, §4.3).
func (s *Service) handleTeardown(ctx context.Context, agentID, rtcID uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	conn, err := s.repo.GetConnection(ctx, tx, agentID, rtcID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAgentConnection(ctx, tx, agentID, rtcID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if conn.Intent == models.IntentWrite {
		stream, err := s.repo.GetLiveStream(ctx, tx, rtcID)
		if err != nil {
			return err
		}
		if stream != nil {
			if err := s.repo.CloseStream(ctx, tx, stream.ID); err != nil {
				return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
			}
			if err := enqueueStreamUpdate(ctx, tx, stream); err != nil {
				return err
			}
		}
	}
	return commit(ctx, tx)
}
