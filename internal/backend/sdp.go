package backend

import (
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// ClassifyJSEP validates a client-submitted JSEP against the connection's
// intent (spec §7 invalid_jsep_format, invalid_sdp_type): the SDP type
// must parse, and its direction must be compatible with the rtc.connect
// intent (a write connection must offer to send media; a read connection
// must not be send-only).
func ClassifyJSEP(jsep JSEP, intent models.ConnectIntent) error {
	if jsep.SDP == "" {
		return apperr.New(apperr.KindInvalidJSEPFormat, "missing sdp")
	}
	sdpType := webrtc.NewSDPType(jsep.Type)
	if sdpType == webrtc.SDPType(0) {
		return apperr.New(apperr.KindInvalidSDPType, "unrecognized sdp type: "+jsep.Type)
	}
	if intent == models.IntentWrite && sdpType != webrtc.SDPTypeOffer {
		return apperr.New(apperr.KindInvalidSDPType, "write connections must submit an offer")
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(jsep.SDP)); err != nil {
		return apperr.Wrap(apperr.KindInvalidJSEPFormat, err)
	}
	dir := sessionDirection(&sd)
	switch intent {
	case models.IntentWrite:
		if dir != directionSendOnly && dir != directionSendRecv {
			return apperr.New(apperr.KindInvalidSDPType, "offer does not propose to send media")
		}
	case models.IntentRead:
		if dir == directionSendOnly {
			return apperr.New(apperr.KindInvalidSDPType, "read connection must not be send-only")
		}
	}
	return nil
}

type direction int

const (
	directionInactive direction = iota
	directionSendOnly
	directionRecvOnly
	directionSendRecv
)

// sessionDirection inspects media-level attributes (a=sendonly etc.) and
// returns the broadest direction across all m-lines, since a single
// offer/answer may multiplex several.
func sessionDirection(sd *sdp.SessionDescription) direction {
	best := directionInactive
	for _, md := range sd.MediaDescriptions {
		d := directionInactive
		switch {
		case attrSet(md, "sendrecv"):
			d = directionSendRecv
		case attrSet(md, "sendonly"):
			d = directionSendOnly
		case attrSet(md, "recvonly"):
			d = directionRecvOnly
		case attrSet(md, "inactive"):
			d = directionInactive
		default:
			d = directionSendRecv // RFC default when unspecified
		}
		if d > best {
			best = d
		}
	}
	return best
}

// attrSet reports whether a media-level attribute is present, regardless
// of its value.
func attrSet(md *sdp.MediaDescription, key string) bool {
	_, ok := md.Attribute(key)
	return ok
}
