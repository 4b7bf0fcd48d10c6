// Package backend implements the correlated request/response transaction
// engine against Janus-style media backends (spec §4.3): a WebSocket wire
// client, a transaction correlation registry with timeout enforcement, SDP
// direction classification, and backend-loss teardown.
package backend

import (
	"encoding/json"
)

// Envelope is the outer Janus-style wire frame. Every outgoing request
// carries a unique Transaction; every response/event backend pushes is
// demultiplexed on either Transaction or (SessionID, Sender).
type Envelope struct {
	Janus       string          `json:"janus"`
	Transaction string          `json:"transaction,omitempty"`
	SessionID   int64           `json:"session_id,omitempty"`
	Sender      int64           `json:"sender,omitempty"`
	Plugindata  *PluginData     `json:"plugindata,omitempty"`
	JSEP        *JSEP           `json:"jsep,omitempty"`
	Candidate   *ICECandidate   `json:"candidate,omitempty"`
	ErrorBody   *ErrorBody      `json:"error,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// PluginData carries the plugin-shaped payload of a response or event.
type PluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

// ErrorBody is the backend's non-success error shape.
type ErrorBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// JSEP is a standard WebRTC SDP offer/answer payload.
type JSEP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is a trickle candidate payload.
type ICECandidate struct {
	Candidate     string `json:"candidate,omitempty"`
	SdpMid        string `json:"sdpMid,omitempty"`
	SdpMLineIndex *int   `json:"sdpMLineIndex,omitempty"`
	Completed     bool   `json:"completed,omitempty"`
}

// Verb names the plugin request this service issues against a backend
// handle. Named after the spec's domain operations rather than the
// AudioBridge verbs they are modeled on.
type Verb string

const (
	VerbCreate             Verb = "create"              // create a publisher stream for an rtc.connect(write)
	VerbSubscribe          Verb = "subscribe"            // attach a subscriber handle for an rtc.connect(read)
	VerbSignal             Verb = "signal"               // forward an SDP offer/renegotiation (signal.create/update)
	VerbTrickle            Verb = "trickle"              // forward an ICE candidate
	VerbUpdateWriterConfig Verb = "update-writer-config" // push merged RtcWriterConfig (mute/REMB)
	VerbUpdateReaderConfig Verb = "update-reader-config" // push merged RtcReaderConfig
	VerbLeave              Verb = "agent.leave"          // detach a handle, tearing down its stream if publisher
	VerbUpload             Verb = "upload"               // vacuum-driven recording finalization request
	VerbExists             Verb = "exists"               // backend health/version probe
)

// PluginRequest is the body sent as Envelope.Data for a
// plugin-directed message (janus="message").
type PluginRequest struct {
	Request Verb   `json:"request"`
	RtcID   string `json:"rtc_id,omitempty"`
	Label   string `json:"label,omitempty"`

	SendVideo  *bool `json:"send_video,omitempty"`
	SendAudio  *bool `json:"send_audio,omitempty"`
	VideoREMB  *int  `json:"video_remb,omitempty"`

	ReceiveVideo *bool `json:"receive_video,omitempty"`
	ReceiveAudio *bool `json:"receive_audio,omitempty"`
}

// PluginResponse is the parsed body of Envelope.Plugindata.Data for a
// plugin response or asynchronous plugin event.
type PluginResponse struct {
	Videoroom string `json:"event,omitempty"` // "create"|"subscribed"|"webrtcup"|"hangup"|"detached"|"already_running"
	RtcID     string `json:"rtc_id,omitempty"`
	Segments  []struct {
		StartMs int64 `json:"start_ms"`
		StopMs  int64 `json:"stop_ms"`
	} `json:"segments,omitempty"`
	StartedAt    *int64   `json:"started_at,omitempty"`
	MjrDumpsURIs []string `json:"mjr_dumps_uris,omitempty"`
	Missing      bool     `json:"missing,omitempty"`
}

func isSuccess(e *Envelope) bool {
	return e != nil && (e.Janus == "success" || e.Janus == "ack" || e.Janus == "event")
}

func isAlreadyRunning(pr *PluginResponse) bool {
	return pr != nil && pr.Videoroom == "already_running"
}
