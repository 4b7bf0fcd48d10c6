// Package apperr implements the stable error taxonomy of spec §7: every
// operation failure carries a slug that is stable across releases plus
// the HTTP status that slug maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one stable error-type slug from spec §7's taxonomy.
type Kind string

const (
	// Client validation
	KindInvalidJSEPFormat       Kind = "invalid_jsep_format"
	KindInvalidSDPType          Kind = "invalid_sdp_type"
	KindInvalidSubscriptionObj  Kind = "invalid_subscription_object"
	KindUnknownMethod           Kind = "unknown_method"
	KindMessageParsingFailed    Kind = "message_parsing_failed"

	// Authorization
	KindAccessDenied       Kind = "access_denied"
	KindAuthorizationFailed Kind = "authorization_failed"

	// State
	KindRoomNotFound           Kind = "room_not_found"
	KindRoomClosed             Kind = "room_closed"
	KindRtcNotFound            Kind = "rtc_not_found"
	KindAgentNotEnteredTheRoom Kind = "agent_not_entered_the_room"

	// Capacity / balancing
	KindNoAvailableBackends Kind = "no_available_backends"
	KindCapacityExceeded    Kind = "capacity_exceeded"
	KindBackendNotFound     Kind = "backend_not_found"

	// Backend transaction
	KindBackendRequestFailed    Kind = "backend_request_failed"
	KindBackendRequestTimedOut  Kind = "backend_request_timed_out"
	KindBackendRecordingMissing Kind = "backend_recording_missing"

	// Infrastructure
	KindDatabaseConnectionAcquisitionFailed Kind = "database_connection_acquisition_failed"
	KindDatabaseQueryFailed                 Kind = "database_query_failed"
	KindPublishFailed                       Kind = "publish_failed"
	KindResubscriptionFailed                Kind = "resubscription_failed"
	KindStatsCollectionFailed               Kind = "stats_collection_failed"
	KindMessageBuildingFailed               Kind = "message_building_failed"

	// Unsupported
	KindNotImplemented Kind = "not_implemented"
)

// statusByKind is the fixed slug -> HTTP status mapping (spec §7).
var statusByKind = map[Kind]int{
	KindInvalidJSEPFormat:      http.StatusBadRequest,
	KindInvalidSDPType:         http.StatusBadRequest,
	KindInvalidSubscriptionObj: http.StatusBadRequest,
	KindUnknownMethod:          http.StatusBadRequest,
	KindMessageParsingFailed:   http.StatusBadRequest,

	KindAccessDenied:        http.StatusForbidden,
	KindAuthorizationFailed: http.StatusForbidden,

	KindRoomNotFound:           http.StatusNotFound,
	KindRoomClosed:             http.StatusUnprocessableEntity,
	KindRtcNotFound:            http.StatusNotFound,
	KindAgentNotEnteredTheRoom: http.StatusUnprocessableEntity,

	KindNoAvailableBackends: http.StatusServiceUnavailable,
	KindCapacityExceeded:    http.StatusServiceUnavailable,
	KindBackendNotFound:     http.StatusServiceUnavailable,

	KindBackendRequestFailed:    http.StatusFailedDependency,
	KindBackendRequestTimedOut:  http.StatusFailedDependency,
	KindBackendRecordingMissing: http.StatusFailedDependency,

	KindDatabaseConnectionAcquisitionFailed: http.StatusInternalServerError,
	KindDatabaseQueryFailed:                 http.StatusInternalServerError,
	KindPublishFailed:                       http.StatusInternalServerError,
	KindResubscriptionFailed:                http.StatusInternalServerError,
	KindStatsCollectionFailed:               http.StatusInternalServerError,
	KindMessageBuildingFailed:               http.StatusInternalServerError,

	KindNotImplemented: http.StatusNotImplemented,
}

// Error is an application error carrying a stable slug, its mapped HTTP
// status, a human detail string, and an optional wrapped cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status for the error's kind, defaulting to 500
// for an unregistered kind (should not happen for kinds declared above).
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an *Error with the given kind and detail message.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an *Error that wraps cause.
func Wrap(kind Kind, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
