package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/backend"
)

// Tunables bundles the session package's named config knobs (spec §5, §9).
type Tunables struct {
	MaxRoomDuration     time.Duration
	OrphanedRoomTimeout time.Duration
	CompliantAPIVersion string
}

// Service is the C4 Session State Machine: it wires the repository, the
// balancer, the backend transaction engine and the outbox enqueue helper
// into the spec's room/rtc/signal/config operations.
type Service struct {
	repo    *Repository
	engine  *backend.Engine
	cfg     Tunables
	logger  *zap.Logger
}

func NewService(repo *Repository, engine *backend.Engine, cfg Tunables, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, engine: engine, cfg: cfg, logger: logger}
}
