package models

import (
	"time"

	"github.com/google/uuid"
)

// JanusBackend is a live media backend (SFU instance).
type JanusBackend struct {
	ID               uuid.UUID `json:"id"`
	SessionID        int64     `json:"session_id"`
	HandleID         int64     `json:"handle_id"`
	Capacity         int       `json:"capacity"`
	BalancerCapacity int       `json:"balancer_capacity"`
	Group            string    `json:"group,omitempty"`
	APIVersion       string    `json:"api_version"`
	JanusURL         string    `json:"janus_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// JanusRtcStream is an active publisher stream on a backend.
type JanusRtcStream struct {
	ID        uuid.UUID `json:"id"`
	RtcID     uuid.UUID `json:"rtc_id"`
	BackendID uuid.UUID `json:"backend_id"`
	HandleID  int64     `json:"handle_id"`
	Label     string    `json:"label,omitempty"`
	SentBy    uuid.UUID `json:"sent_by"`
	Time      TimeRange `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the stream has not yet been closed.
func (s *JanusRtcStream) Live() bool { return s.Time.Upper == nil }

// RecordingStatus is the lifecycle state of a Recording.
type RecordingStatus string

const (
	RecordingInProgress RecordingStatus = "in_progress"
	RecordingReady      RecordingStatus = "ready"
	RecordingMissing    RecordingStatus = "missing"
)

// Segment is a half-open millisecond range within a recording.
type Segment struct {
	StartMs int64 `json:"start_ms"`
	StopMs  int64 `json:"stop_ms"`
}

// Recording is the finalization artifact for one RTC's stream history.
type Recording struct {
	RtcID         uuid.UUID       `json:"rtc_id"`
	StartedAt     *int64          `json:"started_at,omitempty"`
	Segments      []Segment       `json:"segments,omitempty"`
	Status        RecordingStatus `json:"status"`
	MjrDumpsURIs  []string        `json:"mjr_dumps_uris,omitempty"`
	S3Key         string          `json:"s3_key,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ValidateInvariants enforces spec §8: status=ready iff started_at and
// segments are both set.
func (r *Recording) ValidateInvariants() error {
	ready := r.Status == RecordingReady
	hasStart := r.StartedAt != nil
	hasSegments := len(r.Segments) > 0
	if ready != (hasStart && hasSegments) {
		return errRecordingReadyMismatch
	}
	return nil
}

type recordingInvariantError string

func (e recordingInvariantError) Error() string { return string(e) }

var errRecordingReadyMismatch = recordingInvariantError("status=ready requires started_at and segments")
