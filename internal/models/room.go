// Package models holds the persisted entities of the conference control
// plane: rooms, RTCs, agents, backends, streams and their policy configs.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RtcSharingPolicy constrains how many RTCs a room admits and who may
// create them.
type RtcSharingPolicy string

const (
	PolicyNone   RtcSharingPolicy = "none"
	PolicyShared RtcSharingPolicy = "shared"
	PolicyOwned  RtcSharingPolicy = "owned"
)

// TimeRange is a half-open interval [Lower, Upper) over UTC seconds.
// Upper is nil while the room is unbounded.
type TimeRange struct {
	Lower time.Time  `json:"lower"`
	Upper *time.Time `json:"upper,omitempty"`
}

// Empty reports whether the range contains no instant (Lower >= Upper).
func (t TimeRange) Empty() bool {
	return t.Upper != nil && !t.Lower.Before(*t.Upper)
}

// Contains reports whether instant is inside the half-open range.
func (t TimeRange) Contains(instant time.Time) bool {
	if instant.Before(t.Lower) {
		return false
	}
	return t.Upper == nil || instant.Before(*t.Upper)
}

// Room is a time-bounded container for RTCs, per spec §3.
type Room struct {
	ID               uuid.UUID        `json:"id"`
	ClassroomID      uuid.UUID        `json:"classroom_id"`
	Audience         string           `json:"audience"`
	Time             TimeRange        `json:"time"`
	CreatedAt        time.Time        `json:"created_at"`
	RtcSharingPolicy RtcSharingPolicy `json:"rtc_sharing_policy"`
	Reserve          *int             `json:"reserve,omitempty"`
	Tags             json.RawMessage  `json:"tags,omitempty"`
	BackendID        *uuid.UUID       `json:"backend_id,omitempty"`
	JanusGroup       *string          `json:"group,omitempty"`
	Host             *uuid.UUID       `json:"host,omitempty"`
	ClosedBy         *uuid.UUID       `json:"closed_by,omitempty"`
	Infinite         bool             `json:"infinite"`
	TimedOut         bool             `json:"timed_out"`
}

// Status classifies the room's lifecycle relative to now.
type RoomStatus string

const (
	RoomScheduled RoomStatus = "scheduled"
	RoomOpen      RoomStatus = "open"
	RoomClosed    RoomStatus = "closed"
)

// Status derives the room's state from its time range and now.
func (r *Room) Status(now time.Time) RoomStatus {
	if r.Time.Upper != nil && !now.Before(*r.Time.Upper) {
		return RoomClosed
	}
	if now.Before(r.Time.Lower) {
		return RoomScheduled
	}
	return RoomOpen
}

// ValidateInvariants checks the non-empty-time and backend/policy
// invariants from spec §3/§8. It does not check RTC-count invariants,
// which require a count query (see Repository.CheckRtcPolicy).
func (r *Room) ValidateInvariants() error {
	if r.Time.Empty() {
		return errEmptyRoomTime
	}
	if r.ClassroomID == uuid.Nil {
		return errMissingClassroom
	}
	if r.BackendID != nil && r.RtcSharingPolicy == PolicyNone {
		return errBackendWithoutPolicy
	}
	return nil
}

// BoundClose clamps an unbounded close time to open+maxDuration, applied
// the first time an RTC is created in the room (spec §3).
func (r *Room) BoundClose(maxDuration time.Duration) {
	if r.Time.Upper != nil || r.Infinite {
		return
	}
	bound := r.Time.Lower.Add(maxDuration)
	r.Time.Upper = &bound
}

var (
	errEmptyRoomTime        = roomInvariantError("room time range must be non-empty")
	errMissingClassroom     = roomInvariantError("classroom_id is required")
	errBackendWithoutPolicy = roomInvariantError("backend_id requires a non-none sharing policy")
)

type roomInvariantError string

func (e roomInvariantError) Error() string { return string(e) }
