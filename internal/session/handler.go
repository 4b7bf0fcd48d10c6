package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/backend"
)

// Handler adapts Service to backend.EventHandler. It is constructed before
// the Service (which needs an already-built Engine) and bound to it once
// both exist, breaking the construction cycle: cmd/server wires
//
//	h := session.NewHandler(logger)
//	engine := backend.NewEngine(timeouts, h, logger)
//	svc := session.NewService(repo, engine, cfg, logger)
//	h.Bind(svc)
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

// Bind attaches the fully constructed Service. Must be called before the
// backend.Engine is connected to any backend.
func (h *Handler) Bind(svc *Service) { h.svc = svc }

// HandleEvent processes one backend-originated push (spec §4.3 "demultiplex
// on (backend_id, handle_id) into handlers that mutate state via C4").
func (h *Handler) HandleEvent(backendID uuid.UUID, sessionID, handleID int64, resp *backend.PluginResponse, env *backend.Envelope) {
	if h.svc == nil || resp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch resp.Videoroom {
	case "webrtcup":
		if err := h.svc.handleWebrtcup(ctx, backendID, handleID); err != nil {
			h.logger.Warn("webrtcup handling failed", zap.Error(err))
		}
	case "hangup", "detached":
		h.handleHandleTeardown(ctx, backendID, handleID)
	}
}

// handleHandleTeardown locates the (agent, rtc) pair owning handleID on
// backendID and tears it down; backendID/handleID are the only identifiers
// a backend event carries.
func (h *Handler) handleHandleTeardown(ctx context.Context, backendID uuid.UUID, handleID int64) {
	conns, err := h.svc.repo.ListConnectionsByBackend(ctx, backendID)
	if err != nil {
		h.logger.Warn("teardown lookup failed", zap.Error(err))
		return
	}
	for _, c := range conns {
		if c.HandleID != handleID {
			continue
		}
		if err := h.svc.handleTeardown(ctx, c.AgentID, c.RtcID); err != nil {
			h.logger.Warn("teardown failed", zap.Error(err))
		}
		return
	}
}

// HandleLoss tears down every handle, stream and connection pinned to a
// backend that dropped its control connection (spec §4.3 "on loss, all
// handles/streams of that backend are torn down").
func (h *Handler) HandleLoss(backendID uuid.UUID) {
	if h.svc == nil {
		return
	}
	h.svc.engine.Disconnect(backendID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conns, err := h.svc.repo.ListConnectionsByBackend(ctx, backendID)
	if err != nil {
		h.logger.Warn("backend-loss connection lookup failed", zap.Error(err))
		return
	}
	for _, c := range conns {
		if err := h.svc.handleTeardown(ctx, c.AgentID, c.RtcID); err != nil {
			h.logger.Warn("backend-loss teardown failed", zap.Error(err))
		}
	}
}
