package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

const sendOnlySDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=sendonly\r\n"

const recvOnlySDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=recvonly\r\n"

func TestClassifyJSEP_WriteRequiresOfferWithSendDirection(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer", SDP: sendOnlySDP}, models.IntentWrite)
	require.NoError(t, err)
}

func TestClassifyJSEP_WriteRejectsRecvOnlyOffer(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer", SDP: recvOnlySDP}, models.IntentWrite)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidSDPType))
}

func TestClassifyJSEP_ReadRejectsSendOnlyOffer(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer", SDP: sendOnlySDP}, models.IntentRead)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidSDPType))
}

func TestClassifyJSEP_ReadAcceptsRecvOnlyOffer(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer", SDP: recvOnlySDP}, models.IntentRead)
	require.NoError(t, err)
}

func TestClassifyJSEP_RejectsUnknownSDPType(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "bogus", SDP: sendOnlySDP}, models.IntentWrite)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidSDPType))
}

func TestClassifyJSEP_RejectsEmptySDP(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer"}, models.IntentWrite)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidJSEPFormat))
}

func TestClassifyJSEP_RejectsMalformedSDPBody(t *testing.T) {
	err := ClassifyJSEP(JSEP{Type: "offer", SDP: "not-an-sdp"}, models.IntentWrite)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidJSEPFormat))
}
