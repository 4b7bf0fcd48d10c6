package backend

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/apperr"
)

// EventHandler receives backend-originated events (spec §4.3 "demultiplex
// on (backend_id, handle_id) into handlers that mutate state via C4") and
// the single loss notification for a backend going offline.
type EventHandler interface {
	HandleEvent(backendID uuid.UUID, sessionID, handleID int64, resp *PluginResponse, env *Envelope)
	HandleLoss(backendID uuid.UUID)
}

// Conn is one live WebSocket connection to a Janus-style backend, with its
// own transaction registry and read-pump goroutine.
type Conn struct {
	backendID uuid.UUID
	ws        *websocket.Conn
	reg       *registry
	logger    *zap.Logger
	handler   EventHandler

	// writeMu serializes frames onto ws: every agent connected to this
	// backend shares one Conn, and gorilla/websocket forbids concurrent
	// writers on the same connection.
	writeMu sync.Mutex

	stopWatchdog chan struct{}
	closeOnce    sync.Once
	closed       chan struct{}
}

// Timeouts bundles the watchdog-governed deadlines of spec §4.3.
type Timeouts struct {
	DefaultTimeout        time.Duration
	StreamUploadTimeout   time.Duration
	WatchdogCheckPeriod   time.Duration
}

// Dial opens a WebSocket connection to a backend's janus_url and starts
// its watchdog and read pump. The caller owns the returned Conn's
// lifecycle and must call Close on backend loss or shutdown.
func Dial(ctx context.Context, backendID uuid.UUID, url string, tm Timeouts, handler EventHandler, logger *zap.Logger) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: tm.DefaultTimeout, Subprotocols: []string{"janus-protocol"}}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackendRequestFailed, err)
	}
	c := &Conn{
		backendID:    backendID,
		ws:           ws,
		reg:          newRegistry(),
		logger:       logger,
		handler:      handler,
		stopWatchdog: make(chan struct{}),
		closed:       make(chan struct{}),
	}
	go c.reg.watchdog(tm.WatchdogCheckPeriod, c.stopWatchdog)
	go c.readPump()
	return c, nil
}

// Close tears down the connection and its watchdog; safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.stopWatchdog)
		_ = c.ws.Close()
		close(c.closed)
	})
}

// Send issues a plugin request on sessionID/handleID and blocks for the
// matching response or a timeout/loss failure (spec §4.3 fail reasons:
// backend_request_timed_out, backend_request_failed, backend_not_found).
func (c *Conn) Send(ctx context.Context, sessionID, handleID int64, req PluginRequest, timeout time.Duration) (*PluginResponse, error) {
	pr, _, err := c.sendEnvelope(ctx, sessionID, handleID, req, nil, timeout)
	return pr, err
}

// SendJSEP is Send plus an outgoing JSEP offer/answer/candidate, returning
// the backend's JSEP answer alongside the plugin response (signal.create /
// signal.update, spec §4.1).
func (c *Conn) SendJSEP(ctx context.Context, sessionID, handleID int64, req PluginRequest, jsep *JSEP, timeout time.Duration) (*PluginResponse, *JSEP, error) {
	return c.sendEnvelope(ctx, sessionID, handleID, req, jsep, timeout)
}

func (c *Conn) sendEnvelope(ctx context.Context, sessionID, handleID int64, req PluginRequest, jsep *JSEP, timeout time.Duration) (*PluginResponse, *JSEP, error) {
	timeoutKind := apperr.KindBackendRequestTimedOut
	txn, ch := c.reg.register(timeout, timeoutKind)

	body, err := json.Marshal(req)
	if err != nil {
		c.reg.abandon(txn)
		return nil, nil, apperr.Wrap(apperr.KindMessageBuildingFailed, err)
	}
	env := Envelope{
		Janus:       "message",
		Transaction: txn,
		SessionID:   sessionID,
		Sender:      handleID,
		Data:        body,
		JSEP:        jsep,
	}
	if err := c.write(env); err != nil {
		c.reg.abandon(txn)
		return nil, nil, apperr.Wrap(apperr.KindBackendRequestFailed, err)
	}

	select {
	case <-ctx.Done():
		c.reg.abandon(txn)
		return nil, nil, apperr.Wrap(apperr.KindBackendRequestTimedOut, ctx.Err())
	case <-c.closed:
		c.reg.abandon(txn)
		return nil, nil, apperr.New(apperr.KindBackendNotFound, "backend connection closed")
	case resp := <-ch:
		if resp == nil {
			return nil, nil, apperr.New(apperr.KindBackendRequestTimedOut, "no response before deadline")
		}
		if resp.ErrorBody != nil {
			return nil, nil, apperr.New(apperr.KindBackendRequestFailed, resp.ErrorBody.Reason)
		}
		if !isSuccess(resp) {
			return nil, nil, apperr.New(apperr.KindBackendRequestFailed, resp.Janus)
		}
		pr, err := decodePlugin(resp)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.KindBackendRequestFailed, err)
		}
		// spec §4.3: already_running maps to success (idempotent
		// vacuum-overlap tolerance) — isAlreadyRunning needs no special
		// handling beyond falling through here.
		_ = isAlreadyRunning(pr)
		return pr, resp.JSEP, nil
	}
}

func decodePlugin(env *Envelope) (*PluginResponse, error) {
	if env.Plugindata == nil || len(env.Plugindata.Data) == 0 {
		return &PluginResponse{}, nil
	}
	var pr PluginResponse
	if err := json.Unmarshal(env.Plugindata.Data, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (c *Conn) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(env)
}

// readPump demultiplexes incoming frames: responses addressed to a
// transaction resolve their sink; everything else (webrtcup, hangup,
// detached, backend offline pushes) is dispatched to the EventHandler.
// On read error the connection is considered lost and handler.HandleLoss
// is invoked once (spec §4.3 "backend loss is detected by status-channel
// disconnect or heartbeat timeout").
func (c *Conn) readPump() {
	defer c.handler.HandleLoss(c.backendID)
	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if c.logger != nil {
				c.logger.Warn("backend connection lost", zap.String("backend_id", c.backendID.String()), zap.Error(err))
			}
			return
		}
		if env.Transaction != "" && c.reg.resolve(env.Transaction, &env) {
			continue
		}
		pr, err := decodePlugin(&env)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("unparseable backend event", zap.Error(err))
			}
			continue
		}
		c.handler.HandleEvent(c.backendID, env.SessionID, env.Sender, pr, &env)
	}
}
