package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/outbox"
)

// UpdateGroups implements group.update: overwrites a room's agent-group
// partition in one transaction (spec §4.1).
func (s *Service) UpdateGroups(ctx context.Context, roomID uuid.UUID, groups []models.GroupAgent) ([]models.GroupAgent, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SetGroupPartition(ctx, tx, roomID, groups); err != nil {
		return nil, err
	}
	if err := outbox.Enqueue(ctx, tx, "room", roomID, models.StageGroupUpdate, models.TopicRoom, roomID.String(), groups); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListGroups implements group.list.
func (s *Service) ListGroups(ctx context.Context, roomID uuid.UUID) ([]models.GroupAgent, error) {
	return s.repo.ListGroupPartition(ctx, roomID)
}
