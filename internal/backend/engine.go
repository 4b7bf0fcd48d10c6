package backend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/apperr"
)

// Engine is the C3 Backend Transaction Engine: it owns one Conn per
// reachable JanusBackend and routes plugin requests to the right one.
type Engine struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*Conn
	tm      Timeouts
	handler EventHandler
	logger  *zap.Logger
}

func NewEngine(tm Timeouts, handler EventHandler, logger *zap.Logger) *Engine {
	return &Engine{conns: make(map[uuid.UUID]*Conn), tm: tm, handler: handler, logger: logger}
}

// Connect dials a backend if not already connected, idempotently.
func (e *Engine) Connect(ctx context.Context, backendID uuid.UUID, janusURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.conns[backendID]; ok {
		return nil
	}
	conn, err := Dial(ctx, backendID, janusURL, e.tm, e.handler, e.logger)
	if err != nil {
		return err
	}
	e.conns[backendID] = conn
	return nil
}

// Disconnect tears down and forgets a backend's connection, used both on
// explicit shutdown and after HandleLoss fires for that backend.
func (e *Engine) Disconnect(backendID uuid.UUID) {
	e.mu.Lock()
	conn, ok := e.conns[backendID]
	delete(e.conns, backendID)
	e.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (e *Engine) conn(backendID uuid.UUID) (*Conn, error) {
	e.mu.RLock()
	conn, ok := e.conns[backendID]
	e.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.KindBackendNotFound, "no connection for backend")
	}
	return conn, nil
}

func (e *Engine) send(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, req PluginRequest, timeout time.Duration) (*PluginResponse, error) {
	conn, err := e.conn(backendID)
	if err != nil {
		return nil, err
	}
	return conn.Send(ctx, sessionID, handleID, req, timeout)
}

// CreatePublisher issues the verb backing rtc.connect(write): a new
// publisher handle for rtcID.
func (e *Engine) CreatePublisher(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, rtcID uuid.UUID, label string) (*PluginResponse, error) {
	return e.send(ctx, backendID, sessionID, handleID, PluginRequest{Request: VerbCreate, RtcID: rtcID.String(), Label: label}, e.tm.DefaultTimeout)
}

// Subscribe issues the verb backing rtc.connect(read): a subscriber
// handle attached to rtcID's live stream.
func (e *Engine) Subscribe(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, rtcID uuid.UUID) (*PluginResponse, error) {
	return e.send(ctx, backendID, sessionID, handleID, PluginRequest{Request: VerbSubscribe, RtcID: rtcID.String()}, e.tm.DefaultTimeout)
}

// Signal forwards an SDP offer (or renegotiation) to a handle and returns
// the backend's JSEP answer (signal.create / signal.update, spec §4.1).
func (e *Engine) Signal(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, rtcID uuid.UUID, jsep *JSEP) (*PluginResponse, *JSEP, error) {
	conn, err := e.conn(backendID)
	if err != nil {
		return nil, nil, err
	}
	req := PluginRequest{Request: VerbSignal, RtcID: rtcID.String()}
	return conn.SendJSEP(ctx, sessionID, handleID, req, jsep, e.tm.DefaultTimeout)
}

// Trickle forwards one ICE candidate for an in-progress handle.
func (e *Engine) Trickle(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, candidate ICECandidate) error {
	conn, err := e.conn(backendID)
	if err != nil {
		return err
	}
	return conn.write(Envelope{Janus: "trickle", SessionID: sessionID, Sender: handleID, Candidate: &candidate})
}

// UpdateWriterConfig pushes merged mute/REMB state to a publisher handle.
func (e *Engine) UpdateWriterConfig(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, sendVideo, sendAudio *bool, remb *int) (*PluginResponse, error) {
	req := PluginRequest{Request: VerbUpdateWriterConfig, SendVideo: sendVideo, SendAudio: sendAudio, VideoREMB: remb}
	return e.send(ctx, backendID, sessionID, handleID, req, e.tm.DefaultTimeout)
}

// UpdateReaderConfig pushes merged receive policy to a subscriber handle.
func (e *Engine) UpdateReaderConfig(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, recvVideo, recvAudio *bool) (*PluginResponse, error) {
	req := PluginRequest{Request: VerbUpdateReaderConfig, ReceiveVideo: recvVideo, ReceiveAudio: recvAudio}
	return e.send(ctx, backendID, sessionID, handleID, req, e.tm.DefaultTimeout)
}

// Leave detaches a handle; the backend tears down its publisher stream if
// the handle was one.
func (e *Engine) Leave(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64) (*PluginResponse, error) {
	return e.send(ctx, backendID, sessionID, handleID, PluginRequest{Request: VerbLeave}, e.tm.DefaultTimeout)
}

// Upload requests vacuum-driven recording finalization for rtcID, with
// the longer stream_upload_timeout deadline (spec §4.5, §5).
func (e *Engine) Upload(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64, rtcID uuid.UUID) (*PluginResponse, error) {
	return e.send(ctx, backendID, sessionID, handleID, PluginRequest{Request: VerbUpload, RtcID: rtcID.String()}, e.tm.StreamUploadTimeout)
}

// Exists probes a backend's compliant-API status for vacuum eligibility
// (spec §4.5 "operates only on backends reporting a compliant API version").
func (e *Engine) Exists(ctx context.Context, backendID uuid.UUID, sessionID, handleID int64) (*PluginResponse, error) {
	return e.send(ctx, backendID, sessionID, handleID, PluginRequest{Request: VerbExists}, e.tm.DefaultTimeout)
}
