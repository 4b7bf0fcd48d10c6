package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJanusRtcStream_Live(t *testing.T) {
	live := JanusRtcStream{Time: TimeRange{Lower: time.Now()}}
	assert.True(t, live.Live())

	stopped := time.Now()
	closed := JanusRtcStream{Time: TimeRange{Lower: stopped.Add(-time.Minute), Upper: &stopped}}
	assert.False(t, closed.Live())
}

func TestRecording_ValidateInvariants(t *testing.T) {
	startedAt := int64(1000)

	ready := Recording{Status: RecordingReady, StartedAt: &startedAt, Segments: []Segment{{StartMs: 0, StopMs: 5000}}}
	assert.NoError(t, ready.ValidateInvariants())

	readyMissingSegments := Recording{Status: RecordingReady, StartedAt: &startedAt}
	assert.Error(t, readyMissingSegments.ValidateInvariants())

	readyMissingStart := Recording{Status: RecordingReady, Segments: []Segment{{StartMs: 0, StopMs: 5000}}}
	assert.Error(t, readyMissingStart.ValidateInvariants())

	inProgress := Recording{Status: RecordingInProgress}
	assert.NoError(t, inProgress.ValidateInvariants())

	missing := Recording{Status: RecordingMissing}
	assert.NoError(t, missing.ValidateInvariants())

	// A non-ready status carrying start/segments anyway (e.g. a stale read
	// mid-finalization) is itself an invariant violation: ready holds
	// exactly when both are set.
	missingWithData := Recording{Status: RecordingMissing, StartedAt: &startedAt, Segments: []Segment{{StartMs: 0, StopMs: 1000}}}
	assert.Error(t, missingWithData.ValidateInvariants())
}
