package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/outbox"
)

// UpdateWriterConfig implements agent_writer_config.update (spec §4.6):
// merges delta into the current writer policy, appends a replay snapshot,
// pushes the derived mute/REMB state to the backend, and emits one
// consolidated event carrying the full post-merge state.
func (s *Service) UpdateWriterConfig(ctx context.Context, rtcID uuid.UUID, delta models.WriterConfigDelta) (*models.RtcWriterConfig, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetWriterConfig(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	next := current.Merge(delta)
	if err := s.repo.UpsertWriterConfig(ctx, tx, next); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := s.repo.InsertWriterConfigSnapshot(ctx, tx, rtcID, delta); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}

	publisher, err := s.repo.GetPublisherConnection(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	if err := outbox.Enqueue(ctx, tx, "rtc", rtcID, models.StageAgentWriterConfig, models.TopicRoom, rtcID.String(), next); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	if publisher != nil {
		backendRow, err := s.repo.GetBackend(ctx, publisher.BackendID)
		if err != nil {
			return nil, err
		}
		remb := int(0)
		var rembPtr *int
		if next.VideoRemb != nil {
			remb = int(*next.VideoRemb)
			rembPtr = &remb
		}
		sendVideo, sendAudio := next.SendVideo, next.SendAudio
		if _, err := s.engine.UpdateWriterConfig(ctx, publisher.BackendID, backendRow.SessionID, publisher.HandleID, &sendVideo, &sendAudio, rembPtr); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// UpdateReaderConfig implements agent_reader_config.update (spec §4.6):
// restricted to same-group peers of the RTC's publisher.
func (s *Service) UpdateReaderConfig(ctx context.Context, rtcID, readerAgentID uuid.UUID, delta models.ReaderConfigDelta) (*models.RtcReaderConfig, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rtc, err := s.repo.GetRtc(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	publisher, err := s.repo.GetPublisherConnection(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		if err := s.requireSameGroup(ctx, rtc.RoomID, readerAgentID, publisher.AgentID); err != nil {
			return nil, err
		}
	}

	current, err := s.repo.GetReaderConfig(ctx, tx, rtcID, readerAgentID)
	if err != nil {
		return nil, err
	}
	next := current.Merge(delta)
	if err := s.repo.UpsertReaderConfig(ctx, tx, next); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	if err := outbox.Enqueue(ctx, tx, "rtc", rtcID, models.StageAgentReaderConfig, models.TopicRoom, rtcID.String(), next); err != nil {
		return nil, err
	}

	reader, err := s.repo.GetConnection(ctx, tx, readerAgentID, rtcID)
	if err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	backendRow, err := s.repo.GetBackend(ctx, reader.BackendID)
	if err != nil {
		return nil, err
	}
	recvVideo, recvAudio := next.ReceiveVideo, next.ReceiveAudio
	if _, err := s.engine.UpdateReaderConfig(ctx, reader.BackendID, backendRow.SessionID, reader.HandleID, &recvVideo, &recvAudio); err != nil {
		return nil, err
	}
	return &next, nil
}

// requireSameGroup enforces spec §4.6 "reader updates restricted to
// same-group peers (GroupAgent)". Rooms with no group partition defined
// impose no restriction.
func (s *Service) requireSameGroup(ctx context.Context, roomID, readerID, writerID uuid.UUID) error {
	partition, err := s.repo.ListGroupPartition(ctx, roomID)
	if err != nil {
		return err
	}
	if len(partition) == 0 {
		return nil
	}
	groups := make(map[uuid.UUID]int, len(partition))
	for _, g := range partition {
		groups[g.AgentID] = g.Number
	}
	readerGroup, readerOK := groups[readerID]
	writerGroup, writerOK := groups[writerID]
	if !readerOK || !writerOK || readerGroup != writerGroup {
		return apperr.New(apperr.KindAccessDenied, "reader and writer are not in the same group")
	}
	return nil
}
