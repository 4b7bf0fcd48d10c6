package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/models"
)

// ListAgents implements agent.list.
func (s *Service) ListAgents(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]models.Agent, error) {
	return s.repo.ListAgents(ctx, roomID, offset, limit)
}

// ReadWriterConfig implements agent_writer_config.read.
func (s *Service) ReadWriterConfig(ctx context.Context, rtcID uuid.UUID) (*models.RtcWriterConfig, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	c, err := s.repo.GetWriterConfig(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	return &c, commit(ctx, tx)
}

// ReadReaderConfig implements agent_reader_config.read.
func (s *Service) ReadReaderConfig(ctx context.Context, rtcID, readerAgentID uuid.UUID) (*models.RtcReaderConfig, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	c, err := s.repo.GetReaderConfig(ctx, tx, rtcID, readerAgentID)
	if err != nil {
		return nil, err
	}
	return &c, commit(ctx, tx)
}

// GetRtcByID implements rtc.read for the bare /rtcs/{id} route, which
// carries no room id to cross-check against (spec §6).
func (s *Service) GetRtcByID(ctx context.Context, rtcID uuid.UUID) (*models.Rtc, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	rtc, err := s.repo.GetRtc(ctx, tx, rtcID)
	if err != nil {
		return nil, err
	}
	return rtc, commit(ctx, tx)
}

// ListWriterConfigSnapshots implements writer_config_snapshot.read.
func (s *Service) ListWriterConfigSnapshots(ctx context.Context, rtcID uuid.UUID) ([]models.RtcWriterConfigSnapshot, error) {
	return s.repo.ListWriterConfigSnapshots(ctx, rtcID)
}

// ListStreams implements rtc_stream.list.
func (s *Service) ListStreams(ctx context.Context, roomID uuid.UUID, filter StreamFilter) ([]models.JanusRtcStream, error) {
	return s.repo.ListStreamsByRoom(ctx, roomID, filter)
}
